package constants

// CityCode maps a city name as printed on invoices to its IATA airport code.
type CityCode struct {
	City string `toml:"city"`
	Code string `toml:"code"`
}

// AirportCodes is the default lookup table. Order matters: the first city
// found in the text wins.
var AirportCodes = []CityCode{
	{"Pune", "PNQ"},
	{"Mumbai", "BOM"},
	{"Delhi", "DEL"},
	{"Bangalore", "BLR"},
	{"Bengaluru", "BLR"},
	{"Chennai", "MAA"},
	{"Kolkata", "CCU"},
	{"Hyderabad", "HYD"},
	{"Goa", "GOI"},
	{"Ahmedabad", "AMD"},
	{"Jaipur", "JAI"},
	{"Lucknow", "LKO"},
	{"Chandigarh", "IXC"},
	{"Guwahati", "GAU"},
	{"Bhubaneswar", "BBI"},
	{"Indore", "IDR"},
	{"Nagpur", "NAG"},
	{"Patna", "PAT"},
	{"Ranchi", "IXR"},
	{"Srinagar", "SXR"},
	{"Vadodara", "BDQ"},
	{"Varanasi", "VNS"},
	{"Visakhapatnam", "VTZ"},
	{"Vizag", "VTZ"},
}
