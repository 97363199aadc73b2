package model

// PestLineItem is one pest-service row of the contract ledger. Key is
// generated locally; ID is the backend id once the row has been persisted.
type PestLineItem struct {
	Key       string `json:"key"`
	ID        string `json:"id,omitempty"`
	Pest      Ref    `json:"pest"`
	Frequency Ref    `json:"frequency"`
	Chemical  Ref    `json:"chemical"`
	Count     string `json:"pestCount"`
	Value     string `json:"pestValue"`
	Total     string `json:"totalValue"`
	WorkTime  string `json:"workTime"`
	ItemCount string `json:"itemCount"`
}
