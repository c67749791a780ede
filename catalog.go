package ifit

// Characteristic is a protocol-level named, typed value exposed by the
// equipment -- distinct from a GATT characteristic, though each one maps to
// a position inside the WRITE_AND_READ payload for a given ID.
type Characteristic struct {
	ID        byte
	Name      string
	Writable  bool
	Converter Converter
}

// catalogEntry is the table-literal shape used to build the immutable
// catalog below; it exists only so the table reads as data, not code.
type catalogEntry struct {
	id       byte
	name     string
	writable bool
	conv     Converter
}

var catalogTable = []catalogEntry{
	{0, "Kph", true, ConvDouble},
	{1, "Incline", true, ConvDouble},
	{4, "CurrentDistance", false, ConvUInt32},
	{9, "Volume", true, ConvUInt8},
	{10, "Pulse", false, ConvPulse},
	{11, "UpTime", false, ConvUInt32},
	{12, "Mode", true, ConvUInt8},
	{13, "Calories", false, ConvScaled32},
	{16, "CurrentKph", false, ConvDouble},
	{17, "CurrentIncline", false, ConvDouble},
	{20, "CurrentTime", false, ConvUInt32},
	{21, "CurrentCalories", false, ConvScaled32},
	{27, "MaxIncline", false, ConvDouble},
	{28, "MinIncline", false, ConvDouble},
	{30, "MaxKph", false, ConvDouble},
	{31, "MinKph", false, ConvDouble},
	{36, "Metric", true, ConvBoolean},
	{49, "MaxPulse", false, ConvUInt8},
	{52, "AverageIncline", false, ConvDouble},
	{70, "TotalTime", false, ConvUInt32},
	{103, "PausedTime", false, ConvUInt32},
}

// Catalog is the immutable-after-init table of characteristics. IDs are a
// dense byte space in practice, so lookup by ID is a fixed-size array
// indexed directly by id, with a side map for the (rarer) lookup by name.
// The zero value is not usable; construct with NewCatalog or use the
// package-level DefaultCatalog.
type Catalog struct {
	byID   [256]*Characteristic
	byName map[string]*Characteristic
}

// NewCatalog builds a Catalog from entries. It panics on a duplicate ID,
// since that would violate the global uniqueness invariant and can only
// happen from a programming error in the table above.
func NewCatalog(entries []catalogEntry) *Catalog {
	c := &Catalog{
		byName: make(map[string]*Characteristic, len(entries)),
	}
	for _, e := range entries {
		if c.byID[e.id] != nil {
			panic("ifit: duplicate characteristic id in catalog: " + e.name)
		}
		ch := &Characteristic{ID: e.id, Name: e.name, Writable: e.writable, Converter: e.conv}
		c.byID[e.id] = ch
		c.byName[e.name] = ch
	}
	return c
}

// DefaultCatalog is the static table loaded at process start. It is never
// mutated after init.
var DefaultCatalog = NewCatalog(catalogTable)

// ByID looks up a characteristic by its wire ID.
func (c *Catalog) ByID(id byte) (*Characteristic, bool) {
	ch := c.byID[id]
	return ch, ch != nil
}

// ByName looks up a characteristic by its protocol name.
func (c *Catalog) ByName(name string) (*Characteristic, bool) {
	ch, ok := c.byName[name]
	return ch, ok
}

// WritableByID reports whether id exists and is writable.
func (c *Catalog) WritableByID(id byte) bool {
	ch := c.byID[id]
	return ch != nil && ch.Writable
}

// IterSortedByID returns every characteristic in ascending ID order, which
// falls out directly from scanning the fixed-size array front to back.
func (c *Catalog) IterSortedByID() []*Characteristic {
	out := make([]*Characteristic, 0, len(c.byName))
	for _, ch := range c.byID {
		if ch != nil {
			out = append(out, ch)
		}
	}
	return out
}
