package registry

// SampleCatalog is a small plant used by `intentgate registry init` and by
// tests across the module.
func SampleCatalog() Catalog {
	return Catalog{
		Machines: []Member{
			{Name: "Compressor-1", Aliases: []string{"compressor one", "comp 1"}, Group: "Hall-A"},
			{Name: "Compressor-EU-1", Aliases: []string{"eu compressor"}, Group: "Hall-B"},
			{Name: "Pump-2", Aliases: []string{"feed pump"}, Group: "Hall-A"},
			{Name: "Chiller-3", Group: "Hall-B"},
			{Name: "Boiler-4", Aliases: []string{"steam boiler"}, Group: "Hall-B"},
		},
		Metrics: []Member{
			{Name: "power", Aliases: []string{"kw", "kilowatts", "load", "power draw"}},
			{Name: "energy", Aliases: []string{"kwh", "consumption", "energy use"}},
			{Name: "temperature", Aliases: []string{"temp"}},
			{Name: "pressure"},
			{Name: "vibration"},
			{Name: "efficiency"},
			{Name: "runtime", Aliases: []string{"operating hours", "run time"}},
		},
		TimeRanges: []Member{
			{Name: "today"},
			{Name: "yesterday"},
			{Name: "last_hour", Aliases: []string{"last hour", "past hour"}},
			{Name: "last_24h", Aliases: []string{"last 24 hours", "past day"}},
			{Name: "this_week", Aliases: []string{"this week"}},
			{Name: "last_week", Aliases: []string{"last week"}},
			{Name: "this_month", Aliases: []string{"this month"}},
			{Name: "last_month", Aliases: []string{"last month"}},
			{Name: "tomorrow"},
			{Name: "next_week", Aliases: []string{"next week"}},
		},
		EnergySources: []Member{
			{Name: "electricity", Aliases: []string{"electric", "grid"}},
			{Name: "natural_gas", Aliases: []string{"gas", "natural gas"}},
			{Name: "solar", Aliases: []string{"pv", "photovoltaic"}},
			{Name: "compressed_air", Aliases: []string{"compressed air"}},
			{Name: "steam"},
		},
		Groups: []Member{
			{Name: "Hall-A", Aliases: []string{"hall a"}},
			{Name: "Hall-B", Aliases: []string{"hall b"}},
		},
	}
}
