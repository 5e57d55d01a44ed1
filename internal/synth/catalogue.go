package synth

// place is a country the generator can emit, with its ISO 3166-1 alpha-3
// code so the bubble map can locate it.
type place struct {
	name       string
	code       string
	population int64
}

var catalogue = []place{ //nolint:gochecknoglobals // read-only
	{"United States", "USA", 331_000_000},
	{"Brazil", "BRA", 212_600_000},
	{"India", "IND", 1_380_000_000},
	{"United Kingdom", "GBR", 67_900_000},
	{"France", "FRA", 65_300_000},
	{"Germany", "DEU", 83_800_000},
	{"Italy", "ITA", 60_500_000},
	{"Spain", "ESP", 46_800_000},
	{"Mexico", "MEX", 128_900_000},
	{"Argentina", "ARG", 45_200_000},
	{"Chile", "CHL", 19_100_000},
	{"Peru", "PER", 33_000_000},
	{"Colombia", "COL", 50_900_000},
	{"Canada", "CAN", 37_700_000},
	{"South Africa", "ZAF", 59_300_000},
	{"Nigeria", "NGA", 206_100_000},
	{"Egypt", "EGY", 102_300_000},
	{"Turkey", "TUR", 84_300_000},
	{"Iran", "IRN", 84_000_000},
	{"Russia", "RUS", 145_900_000},
	{"Poland", "POL", 37_800_000},
	{"Sweden", "SWE", 10_100_000},
	{"Norway", "NOR", 5_400_000},
	{"Japan", "JPN", 126_500_000},
	{"South Korea", "KOR", 51_300_000},
	{"Indonesia", "IDN", 273_500_000},
	{"Philippines", "PHL", 109_600_000},
	{"Australia", "AUS", 25_500_000},
	{"New Zealand", "NZL", 4_800_000},
	{"Vietnam", "VNM", 97_300_000},
}

// MaxCountries is the number of distinct countries the generator knows.
var MaxCountries = len(catalogue) //nolint:gochecknoglobals // read-only
