// Package ticket turns noisy OCR text into structured ticket fields and
// derives the content fingerprint used for exact-duplicate detection.
package ticket

// Field keys. Every Fields value carries all eight, "" meaning not found.
const (
	FieldEventName = "event_name"
	FieldVenue     = "venue"
	FieldEventDate = "event_date"
	FieldSection   = "section"
	FieldRow       = "row"
	FieldSeat      = "seat"
	FieldPrice     = "price"
	FieldCategory  = "category"
)

// FieldNames lists the keys in a stable order.
var FieldNames = []string{
	FieldEventName,
	FieldVenue,
	FieldEventDate,
	FieldSection,
	FieldRow,
	FieldSeat,
	FieldPrice,
	FieldCategory,
}

// Category values.
const (
	CategoryVIP              = "VIP"
	CategoryGeneralAdmission = "General Admission"
	CategorySeated           = "Seated"
	CategoryGeneral          = "General"
)

// Fields is the structured result of extraction. EventDate is the raw matched
// text; Price is a decimal string without the currency sign.
type Fields struct {
	EventName string `json:"event_name" yaml:"event_name"`
	Venue     string `json:"venue" yaml:"venue"`
	EventDate string `json:"event_date" yaml:"event_date"`
	Section   string `json:"section" yaml:"section"`
	Row       string `json:"row" yaml:"row"`
	Seat      string `json:"seat" yaml:"seat"`
	Price     string `json:"price" yaml:"price"`
	Category  string `json:"category" yaml:"category"`
}

// Map returns all eight keys.
func (f Fields) Map() map[string]string {
	return map[string]string{
		FieldEventName: f.EventName,
		FieldVenue:     f.Venue,
		FieldEventDate: f.EventDate,
		FieldSection:   f.Section,
		FieldRow:       f.Row,
		FieldSeat:      f.Seat,
		FieldPrice:     f.Price,
		FieldCategory:  f.Category,
	}
}

// Get returns the value stored under key, or "" for an unknown key.
func (f Fields) Get(key string) string {
	switch key {
	case FieldEventName:
		return f.EventName
	case FieldVenue:
		return f.Venue
	case FieldEventDate:
		return f.EventDate
	case FieldSection:
		return f.Section
	case FieldRow:
		return f.Row
	case FieldSeat:
		return f.Seat
	case FieldPrice:
		return f.Price
	case FieldCategory:
		return f.Category
	}
	return ""
}

// With returns a copy of f with key set to value. Unknown keys are ignored.
func (f Fields) With(key, value string) Fields {
	switch key {
	case FieldEventName:
		f.EventName = value
	case FieldVenue:
		f.Venue = value
	case FieldEventDate:
		f.EventDate = value
	case FieldSection:
		f.Section = value
	case FieldRow:
		f.Row = value
	case FieldSeat:
		f.Seat = value
	case FieldPrice:
		f.Price = value
	case FieldCategory:
		f.Category = value
	}
	return f
}

// IsBlank reports whether nothing but the derived category was found.
func (f Fields) IsBlank() bool {
	return f.EventName == "" && f.Venue == "" && f.EventDate == "" &&
		f.Section == "" && f.Row == "" && f.Seat == "" && f.Price == ""
}

// Merge applies the non-empty values of overrides on top of f.
func (f Fields) Merge(overrides Fields) Fields {
	for _, key := range FieldNames {
		if v := overrides.Get(key); v != "" {
			f = f.With(key, v)
		}
	}
	return f
}

// IsKnownField reports whether key is one of the eight field keys.
func IsKnownField(key string) bool {
	for _, name := range FieldNames {
		if name == key {
			return true
		}
	}
	return false
}

func IsValidCategory(c string) bool {
	switch c {
	case CategoryVIP, CategoryGeneralAdmission, CategorySeated, CategoryGeneral:
		return true
	}
	return false
}
