// Package model defines data structures used throughout the application.
package model

// Attribute names shared by the category and item tables.
const (
	AttrCategory = "category"
	AttrItemID   = "item_id"
	AttrNumItem  = "num_item"
)

// Record is a single store record keyed by attribute name.
type Record map[string]any

// Key identifies a record by its full primary key.
type Key map[string]any

// Category represents a named pool of items with its recorded item count.
type Category struct {
	Name    string `json:"category"`
	NumItem int    `json:"num_item"`
}

// Record converts the category into its store representation.
func (c Category) Record() Record {
	return Record{
		AttrCategory: c.Name,
		AttrNumItem:  c.NumItem,
	}
}

// CategoryKey returns the primary key of a category record.
func CategoryKey(name string) Key {
	return Key{AttrCategory: name}
}

// ItemKey returns the primary key of an item record.
func ItemKey(category string, id int) Key {
	return Key{AttrCategory: category, AttrItemID: id}
}

// IsReservedAttr reports whether name is a key attribute of the item table.
func IsReservedAttr(name string) bool {
	return name == AttrCategory || name == AttrItemID
}

// ItemRecord builds the stored item from a caller payload and its key.
func ItemRecord(category string, id int, payload map[string]any) Record {
	rec := make(Record, len(payload)+2)
	for k, v := range payload {
		rec[k] = v
	}
	rec[AttrCategory] = category
	rec[AttrItemID] = id
	return rec
}

// Payload strips the key attributes from a stored item.
func (r Record) Payload() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if IsReservedAttr(k) {
			continue
		}
		out[k] = v
	}
	return out
}
