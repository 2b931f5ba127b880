package model

import "encoding/json"

// Optional is a string field that remembers whether it was supplied.
// A JSON null counts as supplied with an empty value.
type Optional struct {
	value string
	set   bool
}

func Some(v string) Optional {
	return Optional{value: v, set: true}
}

func (o Optional) Get() (string, bool) {
	return o.value, o.set
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.set = true
	o.value = ""
	if raw != nil {
		o.value = *raw
	}
	return nil
}

// Patch is a partial update body; absent fields are left unchanged.
type Patch struct {
	Title   Optional `json:"title"`
	Content Optional `json:"content"`
}

// Empty reports whether no field was supplied.
func (p Patch) Empty() bool {
	_, t := p.Title.Get()
	_, c := p.Content.Get()
	return !t && !c
}
