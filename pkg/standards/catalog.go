package standards

import (
	"fmt"
	"sort"
)

// Catalog is an immutable view over a standards Table. All methods are pure;
// an unknown material or angle name is a supported case meaning "no
// constraint", never an error.
type Catalog struct {
	table Table
}

// New builds a Catalog from t. The table is copied, so later changes to t do
// not leak into the catalog.
func New(t Table) *Catalog {
	return &Catalog{table: copyTable(t)}
}

// Lookup returns the range for angleName under material, if any.
func (c *Catalog) Lookup(angleName, material string) (AngleRange, bool) {
	angles, ok := c.table[material]
	if !ok {
		return AngleRange{}, false
	}
	r, ok := angles[angleName]
	return r, ok
}

// GetStandardRange returns the formatted range for the pair, or NotSpecified.
func (c *Catalog) GetStandardRange(angleName, material string) string {
	r, ok := c.Lookup(angleName, material)
	if !ok {
		return NotSpecified
	}
	return r.String()
}

// CheckCompliance reports whether value satisfies the range for the pair.
// The absence of a standard is never treated as non-compliance.
func (c *Catalog) CheckCompliance(angleName string, value float64, material string) bool {
	r, ok := c.Lookup(angleName, material)
	if !ok {
		return true
	}
	return r.Contains(value)
}

// Evaluate computes the standard string, compliance flag and recommendation
// for value in one step. The direction of a recommendation is decided against
// the numeric lower bound of the matched range.
func (c *Catalog) Evaluate(angleName string, value float64, material string) Evaluation {
	r, ok := c.Lookup(angleName, material)
	if !ok {
		return Evaluation{Standard: NotSpecified, Compliant: true}
	}

	ev := Evaluation{
		Range:     &r,
		Standard:  r.String(),
		Compliant: r.Contains(value),
	}
	if !ev.Compliant {
		ev.Recommendation = Recommend(value, r)
	}
	return ev
}

// Recommend returns the adjustment advice for a value outside r.
func Recommend(value float64, r AngleRange) string {
	if value < r.Min {
		return fmt.Sprintf("Value is below standard (%s). Consider increasing the angle.", r)
	}
	return fmt.Sprintf("Value is above standard (%s). Consider decreasing the angle.", r)
}

// HasMaterial reports whether the catalog defines any range for material.
func (c *Catalog) HasMaterial(material string) bool {
	_, ok := c.table[material]
	return ok
}

// Materials lists the known materials in sorted order.
func (c *Catalog) Materials() []string {
	out := make([]string, 0, len(c.table))
	for m := range c.table {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Angles returns a copy of the ranges defined for material.
func (c *Catalog) Angles(material string) (map[string]AngleRange, bool) {
	angles, ok := c.table[material]
	if !ok {
		return nil, false
	}
	out := make(map[string]AngleRange, len(angles))
	for k, v := range angles {
		out[k] = v
	}
	return out, true
}

// AngleNames lists the angle names of material in sorted order.
func (c *Catalog) AngleNames(material string) []string {
	angles := c.table[material]
	out := make([]string, 0, len(angles))
	for name := range angles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Table returns a copy of the whole table.
func (c *Catalog) Table() Table {
	return copyTable(c.table)
}

func copyTable(t Table) Table {
	out := make(Table, len(t))
	for material, angles := range t {
		cp := make(map[string]AngleRange, len(angles))
		for name, r := range angles {
			cp[name] = r
		}
		out[material] = cp
	}
	return out
}
