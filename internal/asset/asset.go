package asset

// ResolvedAsset is the canonical asset record produced by resolution.
// It is a value type; a new scan produces a new ResolvedAsset.
type ResolvedAsset struct {
	AssetID        string `json:"asset_id"`
	AssetName      string `json:"asset_name"`
	SerialNumber   string `json:"serial_number"`
	Barcode        string `json:"barcode"`
	Status         Status `json:"status"`
	DepartmentName string `json:"department_name"`
	BuildingName   string `json:"building_name"`
	RoomNumber     string `json:"room_number"`

	// Extended fields, only present when the remote service supplies them.
	Price        *float64 `json:"price,omitempty"`
	ReceivedDate string   `json:"received_date,omitempty"`
	Description  string   `json:"description,omitempty"`
	FacultyName  string   `json:"faculty_name,omitempty"`
	ProjectCode  string   `json:"project_code,omitempty"`
	FundCode     string   `json:"fund_code,omitempty"`
	PlanCode     string   `json:"plan_code,omitempty"`
}

// Valid reports whether the record carries an asset id.
func (a ResolvedAsset) Valid() bool {
	return a.AssetID != ""
}

// Normalized returns a copy with the status mapped onto the closed
// enumeration. Records from the remote service and the cache pass through
// here so that unknown statuses never leak out of resolution.
func (a ResolvedAsset) Normalized() ResolvedAsset {
	a.Status = ParseStatus(string(a.Status))
	return a
}
