package builder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nurpe/pestops-contracts/internal/model"
)

// EditBuffer is the scratch line item being composed (add mode) or edited
// (EditingKey set).
type EditBuffer struct {
	Item         model.PestLineItem `json:"item"`
	EditingKey   string             `json:"editingKey,omitempty"`
	CountTouched bool               `json:"countTouched"`
}

func (b EditBuffer) Editing() bool {
	return b.EditingKey != ""
}

// Ledger owns the ordered pest line items and the single edit buffer.
type Ledger struct {
	items   []model.PestLineItem
	buffer  EditBuffer
	nextKey int
	// lifetime increments every time the buffer is reset or re-targeted.
	lifetime uint64
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Seed replaces the ledger with persisted items, giving each a local key.
func (l *Ledger) Seed(items []model.PestLineItem) {
	l.items = make([]model.PestLineItem, 0, len(items))
	for _, item := range items {
		item.Key = l.newKey()
		l.items = append(l.items, item)
	}
	l.resetBuffer()
}

func (l *Ledger) List() []model.PestLineItem {
	out := make([]model.PestLineItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Len() int {
	return len(l.items)
}

func (l *Ledger) Buffer() EditBuffer {
	return l.buffer
}

func (l *Ledger) Lifetime() uint64 {
	return l.lifetime
}

// SetBufferRef stores a pest, frequency or chemical reference.
func (l *Ledger) SetBufferRef(field model.Field, ref model.Ref) error {
	switch field {
	case model.FieldLinePest:
		l.buffer.Item.Pest = ref
	case model.FieldLineFrequency:
		l.buffer.Item.Frequency = ref
	case model.FieldLineChemical:
		l.buffer.Item.Chemical = ref
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// SetBufferText stores a free-text buffer field. Count and value changes
// recompute the buffer total immediately.
func (l *Ledger) SetBufferText(field model.Field, value string) error {
	switch field {
	case model.FieldLineCount:
		l.buffer.Item.Count = value
		l.buffer.CountTouched = true
		l.recomputeTotal()
	case model.FieldLineValue:
		l.buffer.Item.Value = value
		l.recomputeTotal()
	case model.FieldLineWorkTime:
		l.buffer.Item.WorkTime = value
	case model.FieldLineItemCount:
		l.buffer.Item.ItemCount = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// SeedCount applies a looked-up pest count unless the operator already
// typed a count during this buffer lifetime.
func (l *Ledger) SeedCount(count string) bool {
	if l.buffer.CountTouched {
		return false
	}
	l.buffer.Item.Count = count
	l.recomputeTotal()
	return true
}

// AddOrUpdate commits the buffer. In edit mode the entry with the editing
// key is replaced in place; otherwise a new entry is appended.
func (l *Ledger) AddOrUpdate() ([]model.PestLineItem, error) {
	item := l.buffer.Item
	if !item.Pest.IsResolved() {
		return nil, missing("pest")
	}
	if !item.Frequency.IsResolved() {
		return nil, missing("frequency")
	}

	if l.buffer.Editing() {
		pos := l.indexOf(l.buffer.EditingKey)
		if pos < 0 {
			return nil, fmt.Errorf("%w: %s", ErrLineItemNotFound, l.buffer.EditingKey)
		}
		item.Key = l.buffer.EditingKey
		l.items[pos] = item
	} else {
		item.Key = l.newKey()
		item.ID = ""
		l.items = append(l.items, item)
	}

	l.resetBuffer()
	return l.List(), nil
}

// Remove deletes one entry. Removing the entry under edit also resets the
// buffer. The second result reports whether that happened.
func (l *Ledger) Remove(key string) ([]model.PestLineItem, bool, error) {
	pos := l.indexOf(key)
	if pos < 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrLineItemNotFound, key)
	}
	l.items = append(l.items[:pos], l.items[pos+1:]...)

	reset := false
	if l.buffer.EditingKey == key {
		l.resetBuffer()
		reset = true
	}
	return l.List(), reset, nil
}

// StartEdit loads an entry into the buffer, discarding unsaved input. A
// committed count counts as typed, so a later pest count never replaces it.
func (l *Ledger) StartEdit(key string) (EditBuffer, error) {
	pos := l.indexOf(key)
	if pos < 0 {
		return EditBuffer{}, fmt.Errorf("%w: %s", ErrLineItemNotFound, key)
	}
	l.lifetime++
	l.buffer = EditBuffer{
		Item:         l.items[pos],
		EditingKey:   key,
		CountTouched: strings.TrimSpace(l.items[pos].Count) != "",
	}
	return l.buffer, nil
}

func (l *Ledger) CancelEdit() {
	l.resetBuffer()
}

func (l *Ledger) resetBuffer() {
	l.lifetime++
	l.buffer = EditBuffer{}
}

func (l *Ledger) recomputeTotal() {
	l.buffer.Item.Total = lineTotal(l.buffer.Item.Count, l.buffer.Item.Value)
}

func (l *Ledger) indexOf(key string) int {
	if key == "" {
		return -1
	}
	for i, item := range l.items {
		if item.Key == key {
			return i
		}
	}
	return -1
}

func (l *Ledger) newKey() string {
	l.nextKey++
	return fmt.Sprintf("line-%d", l.nextKey)
}

// lineTotal is count × value, or empty when either operand is not a number.
func lineTotal(count, value string) string {
	c, err := decimal.NewFromString(strings.TrimSpace(count))
	if err != nil {
		return ""
	}
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	return c.Mul(v).String()
}
