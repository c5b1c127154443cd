package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
)

const dateLayout = "2006-01-02"

// ErrInvalidCheck is returned for check requests that fail local validation.
var ErrInvalidCheck = errors.New("invalid check request")

var validate = validator.New()

// CheckDate is a calendar date, not a timestamp. The zero value is unset.
type CheckDate struct {
	t time.Time
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) CheckDate {
	y, m, d := t.Date()
	return CheckDate{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseCheckDate parses a YYYY-MM-DD date.
func ParseCheckDate(s string) (CheckDate, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return CheckDate{}, fmt.Errorf("parse check date %q: %w", s, err)
	}
	return CheckDate{t: t}, nil
}

// MustParseCheckDate is ParseCheckDate for literals; it panics on bad input.
func MustParseCheckDate(s string) CheckDate {
	d, err := ParseCheckDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether the date is unset.
func (d CheckDate) IsZero() bool { return d.t.IsZero() }

// String formats the date as YYYY-MM-DD.
func (d CheckDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d CheckDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string. An empty string is the zero date.
func (d *CheckDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("check date: %w", err)
	}
	if s == "" {
		*d = CheckDate{}
		return nil
	}
	parsed, err := ParseCheckDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CheckRequest is an operator's condition check for one asset. Its JSON form
// is the body of POST /checks.
type CheckRequest struct {
	AssetID     string      `json:"asset_id" validate:"required"`
	CheckStatus CheckStatus `json:"check_status" validate:"required,oneof=available in_use under_repair damaged lost"`
	Remark      string      `json:"remark" validate:"max=500"`
	CheckDate   CheckDate   `json:"check_date"`
}

// NewCheckRequest binds operator input to a resolved asset and validates it.
func NewCheckRequest(a ResolvedAsset, status CheckStatus, remark string, date CheckDate) (CheckRequest, error) {
	if !a.Valid() {
		return CheckRequest{}, fmt.Errorf("%w: asset has no id", ErrInvalidCheck)
	}
	req := CheckRequest{
		AssetID:     a.AssetID,
		CheckStatus: status,
		Remark:      strings.TrimSpace(remark),
		CheckDate:   date,
	}
	if err := req.Validate(); err != nil {
		return CheckRequest{}, err
	}
	return req, nil
}

// Validate checks required fields and the status enumeration.
func (r CheckRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidCheck, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCheck, err)
	}
	if r.CheckDate.IsZero() {
		return fmt.Errorf("%w: check date is required", ErrInvalidCheck)
	}
	return nil
}
