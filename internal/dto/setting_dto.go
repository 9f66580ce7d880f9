package dto

var settingTypes = []string{"string", "bool", "int", "float", "json"}

type SetSettingRequest struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

func (r *SetSettingRequest) Validate() error {
	var v ValidationErrors
	if r.Value == "" {
		v.Add("value is required")
	}
	if r.Type == "" {
		r.Type = "string"
	}
	if !oneOf(r.Type, settingTypes) {
		v.Add("type must be one of string, bool, int, float, json")
	}
	return v.Err()
}
