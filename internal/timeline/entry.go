package timeline

import (
	"fmt"
	"time"
)

// Entry is one submitted timeline fact. Field names line up with the CSV
// header columns of the tabular file; see Header for the canonical order.
type Entry struct {
	Date         string `json:"date"`
	Year         string `json:"year,omitempty"`
	Description  string `json:"description"`
	Description2 string `json:"description2,omitempty"`
	Description3 string `json:"description3,omitempty"`
	Description4 string `json:"description4,omitempty"`
	Description5 string `json:"description5,omitempty"`
	Description6 string `json:"description6,omitempty"`
	Link         string `json:"link,omitempty"`
	Link2        string `json:"link2,omitempty"`
	Link3        string `json:"link3,omitempty"`
	Link4        string `json:"link4,omitempty"`
	Link5        string `json:"link5,omitempty"`
	Link6        string `json:"link6,omitempty"`

	// ImagePath is filled in by the service after a successful image
	// store; callers send raw image bytes, not a final path.
	ImagePath string `json:"imagePath,omitempty"`

	// Quarter is derived at append time, never caller-supplied.
	Quarter string `json:"quarter,omitempty"`
}

// Header is the canonical column order for a newly created tabular file.
// Appends to an existing file follow that file's live header instead.
var Header = []string{
	"date", "year",
	"description", "description2", "description3", "description4", "description5", "description6",
	"link", "link2", "link3", "link4", "link5", "link6",
	"imagePath", "quarter",
}

// Field returns the value for a CSV header column name. Unknown columns
// return the empty string so appends tolerate header extension.
func (e *Entry) Field(column string) string {
	switch column {
	case "date":
		return e.Date
	case "year":
		return e.Year
	case "description":
		return e.Description
	case "description2":
		return e.Description2
	case "description3":
		return e.Description3
	case "description4":
		return e.Description4
	case "description5":
		return e.Description5
	case "description6":
		return e.Description6
	case "link":
		return e.Link
	case "link2":
		return e.Link2
	case "link3":
		return e.Link3
	case "link4":
		return e.Link4
	case "link5":
		return e.Link5
	case "link6":
		return e.Link6
	case "imagePath":
		return e.ImagePath
	case "quarter":
		return e.Quarter
	}
	return ""
}

// SetField assigns a decoded CSV value to the field named by the header
// column. Unknown columns are dropped.
func (e *Entry) SetField(column, value string) {
	switch column {
	case "date":
		e.Date = value
	case "year":
		e.Year = value
	case "description":
		e.Description = value
	case "description2":
		e.Description2 = value
	case "description3":
		e.Description3 = value
	case "description4":
		e.Description4 = value
	case "description5":
		e.Description5 = value
	case "description6":
		e.Description6 = value
	case "link":
		e.Link = value
	case "link2":
		e.Link2 = value
	case "link3":
		e.Link3 = value
	case "link4":
		e.Link4 = value
	case "link5":
		e.Link5 = value
	case "link6":
		e.Link6 = value
	case "imagePath":
		e.ImagePath = value
	case "quarter":
		e.Quarter = value
	}
}

// Validate checks the fields a submission cannot do without.
func (e *Entry) Validate() error {
	if e.Date == "" {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if e.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	return nil
}

// QuarterOf derives the calendar-quarter label for a point in time,
// formatted as "YYYY-Q#".
func QuarterOf(t time.Time) string {
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())+2)/3)
}
