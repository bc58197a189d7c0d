package standards

import (
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// rawFile is the on-disk shape of a standards file:
//
//	materials:
//	  - material: HSS
//	    angles:
//	      Rake Angle: {min: 5, max: 15, unit: degrees}
type rawFile struct {
	Materials []rawMaterial `yaml:"materials"`
}

type rawMaterial struct {
	Material string              `yaml:"material"`
	Angles   map[string]rawRange `yaml:"angles"`
}

type rawRange struct {
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
	Unit string   `yaml:"unit"`
}

// LoadFile reads a YAML standards file and builds a catalog from it.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read standards file %s", path)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid standards file %s", path)
	}
	return c, nil
}

// Parse builds a catalog from YAML bytes.
func Parse(b []byte) (*Catalog, error) {
	var raw rawFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal standards")
	}
	if len(raw.Materials) == 0 {
		return nil, pkgerrors.New("no materials defined")
	}

	t := make(Table, len(raw.Materials))
	for i, m := range raw.Materials {
		name := strings.TrimSpace(m.Material)
		if name == "" {
			return nil, pkgerrors.Errorf("material #%d has no name", i+1)
		}
		if _, dup := t[name]; dup {
			return nil, pkgerrors.Errorf("material %q defined more than once", name)
		}

		angles := make(map[string]AngleRange, len(m.Angles))
		for angle, r := range m.Angles {
			if r.Min == nil || r.Max == nil {
				return nil, pkgerrors.Errorf("%s/%s: both min and max are required", name, angle)
			}
			if *r.Min > *r.Max {
				return nil, pkgerrors.Errorf("%s/%s: min %g is greater than max %g", name, angle, *r.Min, *r.Max)
			}
			if r.Unit != "" && r.Unit != "degrees" {
				return nil, pkgerrors.Errorf("%s/%s: unsupported unit %q", name, angle, r.Unit)
			}
			angles[angle] = AngleRange{Min: *r.Min, Max: *r.Max}
		}
		t[name] = angles
	}

	return New(t), nil
}
