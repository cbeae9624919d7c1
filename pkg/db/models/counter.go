package models

// Counter is a named monotonic sequence. Order numbers come from an atomic
// increment on this row instead of a count over the orders table, so two
// concurrent checkouts can never draw the same number.
type Counter struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value int64  `gorm:"column:value;not null;default:0"`
}
