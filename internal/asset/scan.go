package asset

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ScanRecord is the structured record some tags embed in their code.
type ScanRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Barcode  string `json:"barcode"`
	Serial   string `json:"serial"`
	Status   string `json:"status"`
	Dept     string `json:"dept"`
	Building string `json:"building"`
	Room     string `json:"room"`
}

// ScanPayload is one scan event. Record is nil when the code held a plain
// identifier.
type ScanPayload struct {
	Raw    string
	Record *ScanRecord
}

// ParseScan interprets a raw scan. It never fails: input that is not a JSON
// object is a plain identifier. Whitespace is trimmed and text is NFC
// normalized.
func ParseScan(raw string) ScanPayload {
	raw = norm.NFC.String(strings.TrimSpace(raw))
	p := ScanPayload{Raw: raw}

	if !strings.HasPrefix(raw, "{") {
		return p
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return p
	}

	p.Record = &ScanRecord{
		ID:       field(fields, "id"),
		Name:     field(fields, "name"),
		Barcode:  field(fields, "barcode"),
		Serial:   field(fields, "serial"),
		Status:   field(fields, "status"),
		Dept:     field(fields, "dept"),
		Building: field(fields, "building"),
		Room:     field(fields, "room"),
	}
	return p
}

// Identifier is the key used for cache and remote lookups: the structured
// record's id when present, otherwise the raw payload.
func (p ScanPayload) Identifier() string {
	if p.Record != nil && p.Record.ID != "" {
		return p.Record.ID
	}
	return p.Raw
}

// Provisional synthesizes a ResolvedAsset from the embedded record alone.
// It returns false when there is no record or the record has no id.
func (p ScanPayload) Provisional() (ResolvedAsset, bool) {
	if p.Record == nil || p.Record.ID == "" {
		return ResolvedAsset{}, false
	}
	r := p.Record
	return ResolvedAsset{
		AssetID:        r.ID,
		AssetName:      r.Name,
		SerialNumber:   r.Serial,
		Barcode:        r.Barcode,
		Status:         ParseStatus(r.Status),
		DepartmentName: r.Dept,
		BuildingName:   r.Building,
		RoomNumber:     r.Room,
	}, true
}

// field reads a scalar JSON field as text. Numbers keep their literal form.
func field(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return norm.NFC.String(strings.TrimSpace(v))
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
