package standards

// ASME returns the built-in ASME single-point tool angle table.
func ASME() Table {
	return Table{
		"HSS": {
			"Rake Angle":              {Min: 5, Max: 15},
			"Relief Angle":            {Min: 8, Max: 12},
			"Clearance Angle":         {Min: 10, Max: 15},
			"Side Cutting Edge Angle": {Min: 15, Max: 30},
			"End Cutting Edge Angle":  {Min: 8, Max: 15},
		},
		"Carbide": {
			"Rake Angle":              {Min: -5, Max: 10},
			"Relief Angle":            {Min: 5, Max: 10},
			"Clearance Angle":         {Min: 5, Max: 10},
			"Side Cutting Edge Angle": {Min: 15, Max: 45},
			"End Cutting Edge Angle":  {Min: 5, Max: 10},
		},
	}
}

// Default returns a catalog over the built-in ASME table.
func Default() *Catalog {
	return New(ASME())
}
