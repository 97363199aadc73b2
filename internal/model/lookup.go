package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// LookupOption is one reference-data record. The gateway sends either
// {id, name} or {id, label}; ids may be numbers or strings.
type LookupOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (o *LookupOption) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    any     `json:"id"`
		Name  *string `json:"name"`
		Label *string `json:"label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.ID = stringifyID(raw.ID)
	o.Name = ""
	switch {
	case raw.Name != nil && strings.TrimSpace(*raw.Name) != "":
		o.Name = strings.TrimSpace(*raw.Name)
	case raw.Label != nil:
		o.Name = strings.TrimSpace(*raw.Label)
	}
	return nil
}

func stringifyID(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return ""
	default:
		return ""
	}
}

// CleanOptions drops options without an id or a name and removes duplicate
// ids, keeping the first occurrence.
func CleanOptions(options []LookupOption) []LookupOption {
	result := make([]LookupOption, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, option := range options {
		if option.ID == "" || strings.TrimSpace(option.Name) == "" {
			continue
		}
		if _, ok := seen[option.ID]; ok {
			continue
		}
		seen[option.ID] = struct{}{}
		result = append(result, option)
	}
	return result
}

// FindOption resolves an option by id when one is given, otherwise by a
// case-insensitive match on the display name.
func FindOption(options []LookupOption, id, text string) (LookupOption, bool) {
	if id != "" {
		for _, option := range options {
			if option.ID == id {
				return option, true
			}
		}
		return LookupOption{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return LookupOption{}, false
	}
	for _, option := range options {
		if strings.EqualFold(option.Name, text) {
			return option, true
		}
	}
	return LookupOption{}, false
}

// Dropdowns holds every reference option set the builder needs.
type Dropdowns struct {
	Customers          []LookupOption `json:"customers"`
	CallTypes          []LookupOption `json:"callTypes"`
	Industries         []LookupOption `json:"industries"`
	Technicians        []LookupOption `json:"technicians"`
	Supervisors        []LookupOption `json:"supervisors"`
	SalesPersons       []LookupOption `json:"salesPersons"`
	BillingFrequencies []LookupOption `json:"billingFrequencies"`
	ServiceFrequencies []LookupOption `json:"serviceFrequencies"`
	Pests              []LookupOption `json:"pests"`
	Chemicals          []LookupOption `json:"chemicals"`
}

func (d Dropdowns) Clean() Dropdowns {
	return Dropdowns{
		Customers:          CleanOptions(d.Customers),
		CallTypes:          CleanOptions(d.CallTypes),
		Industries:         CleanOptions(d.Industries),
		Technicians:        CleanOptions(d.Technicians),
		Supervisors:        CleanOptions(d.Supervisors),
		SalesPersons:       CleanOptions(d.SalesPersons),
		BillingFrequencies: CleanOptions(d.BillingFrequencies),
		ServiceFrequencies: CleanOptions(d.ServiceFrequencies),
		Pests:              CleanOptions(d.Pests),
		Chemicals:          CleanOptions(d.Chemicals),
	}
}

// OptionsFor returns the option set backing a reference field.
func (d Dropdowns) OptionsFor(field Field) []LookupOption {
	switch field {
	case FieldCustomer:
		return d.Customers
	case FieldCallType:
		return d.CallTypes
	case FieldIndustry:
		return d.Industries
	case FieldTechnician:
		return d.Technicians
	case FieldSupervisor:
		return d.Supervisors
	case FieldSalesPerson:
		return d.SalesPersons
	case FieldBillingFrequency:
		return d.BillingFrequencies
	case FieldLinePest:
		return d.Pests
	case FieldLineFrequency:
		return d.ServiceFrequencies
	case FieldLineChemical:
		return d.Chemicals
	default:
		return nil
	}
}
