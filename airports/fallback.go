package airports

// fallbackAirports covers the major hubs the service is most likely to see
// when the full CSV catalog is unavailable.
var fallbackAirports = []Airport{
	{Code: "AKL", Name: "Auckland Airport", City: "Auckland", Country: "New Zealand", Region: "Oceania", Lat: -37.0081, Lon: 174.7917},
	{Code: "WLG", Name: "Wellington Airport", City: "Wellington", Country: "New Zealand", Region: "Oceania", Lat: -41.3272, Lon: 174.8053},
	{Code: "CHC", Name: "Christchurch Airport", City: "Christchurch", Country: "New Zealand", Region: "Oceania", Lat: -43.4894, Lon: 172.5322},
	{Code: "ZQN", Name: "Queenstown Airport", City: "Queenstown", Country: "New Zealand", Region: "Oceania", Lat: -45.0211, Lon: 168.7392},
	{Code: "DUD", Name: "Dunedin Airport", City: "Dunedin", Country: "New Zealand", Region: "Oceania", Lat: -45.9281, Lon: 170.1983},
	{Code: "SYD", Name: "Sydney Kingsford Smith Airport", City: "Sydney", Country: "Australia", Region: "Oceania", Lat: -33.9461, Lon: 151.1772},
	{Code: "MEL", Name: "Melbourne Airport", City: "Melbourne", Country: "Australia", Region: "Oceania", Lat: -37.6733, Lon: 144.8433},
	{Code: "BNE", Name: "Brisbane Airport", City: "Brisbane", Country: "Australia", Region: "Oceania", Lat: -27.3842, Lon: 153.1175},
	{Code: "PER", Name: "Perth Airport", City: "Perth", Country: "Australia", Region: "Oceania", Lat: -31.9403, Lon: 115.9669},
	{Code: "ADL", Name: "Adelaide Airport", City: "Adelaide", Country: "Australia", Region: "Oceania", Lat: -34.9450, Lon: 138.5306},
	{Code: "OOL", Name: "Gold Coast Airport", City: "Gold Coast", Country: "Australia", Region: "Oceania", Lat: -28.1644, Lon: 153.5047},
	{Code: "NAN", Name: "Nadi International Airport", City: "Nadi", Country: "Fiji", Region: "Oceania", Lat: -17.7554, Lon: 177.4434},
	{Code: "RAR", Name: "Rarotonga International Airport", City: "Rarotonga", Country: "Cook Islands", Region: "Oceania", Lat: -21.2027, Lon: -159.8058},
	{Code: "PPT", Name: "Faa'a International Airport", City: "Papeete", Country: "French Polynesia", Region: "Oceania", Lat: -17.5537, Lon: -149.6070},
	{Code: "APW", Name: "Faleolo International Airport", City: "Apia", Country: "Samoa", Region: "Oceania", Lat: -13.8300, Lon: -172.0083},
	{Code: "TBU", Name: "Fua'amotu International Airport", City: "Nuku'alofa", Country: "Tonga", Region: "Oceania", Lat: -21.2412, Lon: -175.1497},
	{Code: "NOU", Name: "La Tontouta International Airport", City: "Noumea", Country: "New Caledonia", Region: "Oceania", Lat: -22.0146, Lon: 166.2130},
	{Code: "VLI", Name: "Bauerfield International Airport", City: "Port Vila", Country: "Vanuatu", Region: "Oceania", Lat: -17.6993, Lon: 168.3198},
	{Code: "NRT", Name: "Narita International Airport", City: "Tokyo", Country: "Japan", Region: "Asia", Lat: 35.7647, Lon: 140.3864},
	{Code: "HND", Name: "Tokyo Haneda Airport", City: "Tokyo", Country: "Japan", Region: "Asia", Lat: 35.5494, Lon: 139.7798},
	{Code: "KIX", Name: "Kansai International Airport", City: "Osaka", Country: "Japan", Region: "Asia", Lat: 34.4347, Lon: 135.2441},
	{Code: "NGO", Name: "Chubu Centrair International Airport", City: "Nagoya", Country: "Japan", Region: "Asia", Lat: 34.8584, Lon: 136.8049},
	{Code: "CTS", Name: "New Chitose Airport", City: "Sapporo", Country: "Japan", Region: "Asia", Lat: 42.7752, Lon: 141.6923},
	{Code: "FUK", Name: "Fukuoka Airport", City: "Fukuoka", Country: "Japan", Region: "Asia", Lat: 33.5859, Lon: 130.4510},
	{Code: "OKA", Name: "Naha Airport", City: "Okinawa", Country: "Japan", Region: "Asia", Lat: 26.1958, Lon: 127.6459},
	{Code: "ICN", Name: "Incheon International Airport", City: "Seoul", Country: "South Korea", Region: "Asia", Lat: 37.4602, Lon: 126.4407},
	{Code: "PEK", Name: "Beijing Capital International Airport", City: "Beijing", Country: "China", Region: "Asia", Lat: 40.0799, Lon: 116.6031},
	{Code: "PVG", Name: "Shanghai Pudong International Airport", City: "Shanghai", Country: "China", Region: "Asia", Lat: 31.1443, Lon: 121.8083},
	{Code: "CAN", Name: "Guangzhou Baiyun International Airport", City: "Guangzhou", Country: "China", Region: "Asia", Lat: 23.3924, Lon: 113.2988},
	{Code: "HKG", Name: "Hong Kong International Airport", City: "Hong Kong", Country: "Hong Kong", Region: "Asia", Lat: 22.3080, Lon: 113.9185},
	{Code: "TPE", Name: "Taiwan Taoyuan International Airport", City: "Taipei", Country: "Taiwan", Region: "Asia", Lat: 25.0777, Lon: 121.2328},
	{Code: "SIN", Name: "Singapore Changi Airport", City: "Singapore", Country: "Singapore", Region: "Asia", Lat: 1.3644, Lon: 103.9915},
	{Code: "KUL", Name: "Kuala Lumpur International Airport", City: "Kuala Lumpur", Country: "Malaysia", Region: "Asia", Lat: 2.7456, Lon: 101.7099},
	{Code: "BKK", Name: "Suvarnabhumi Airport", City: "Bangkok", Country: "Thailand", Region: "Asia", Lat: 13.6900, Lon: 100.7501},
	{Code: "HKT", Name: "Phuket International Airport", City: "Phuket", Country: "Thailand", Region: "Asia", Lat: 8.1132, Lon: 98.3169},
	{Code: "CNX", Name: "Chiang Mai International Airport", City: "Chiang Mai", Country: "Thailand", Region: "Asia", Lat: 18.7668, Lon: 98.9626},
	{Code: "SGN", Name: "Tan Son Nhat International Airport", City: "Ho Chi Minh City", Country: "Vietnam", Region: "Asia", Lat: 10.8188, Lon: 106.6520},
	{Code: "HAN", Name: "Noi Bai International Airport", City: "Hanoi", Country: "Vietnam", Region: "Asia", Lat: 21.2212, Lon: 105.8072},
	{Code: "DPS", Name: "Ngurah Rai International Airport", City: "Denpasar", Country: "Indonesia", Region: "Asia", Lat: -8.7482, Lon: 115.1672},
	{Code: "CGK", Name: "Soekarno-Hatta International Airport", City: "Jakarta", Country: "Indonesia", Region: "Asia", Lat: -6.1256, Lon: 106.6559},
	{Code: "MNL", Name: "Ninoy Aquino International Airport", City: "Manila", Country: "Philippines", Region: "Asia", Lat: 14.5086, Lon: 121.0194},
	{Code: "DEL", Name: "Indira Gandhi International Airport", City: "Delhi", Country: "India", Region: "Asia", Lat: 28.5562, Lon: 77.1000},
	{Code: "BOM", Name: "Chhatrapati Shivaji Maharaj International Airport", City: "Mumbai", Country: "India", Region: "Asia", Lat: 19.0887, Lon: 72.8679},
	{Code: "CMB", Name: "Bandaranaike International Airport", City: "Colombo", Country: "Sri Lanka", Region: "Asia", Lat: 7.1808, Lon: 79.8841},
	{Code: "MLE", Name: "Velana International Airport", City: "Male", Country: "Maldives", Region: "Asia", Lat: 4.1918, Lon: 73.5291},
	{Code: "DXB", Name: "Dubai International Airport", City: "Dubai", Country: "United Arab Emirates", Region: "Middle East", Lat: 25.2532, Lon: 55.3657},
	{Code: "DOH", Name: "Hamad International Airport", City: "Doha", Country: "Qatar", Region: "Middle East", Lat: 25.2731, Lon: 51.6081},
	{Code: "AUH", Name: "Abu Dhabi International Airport", City: "Abu Dhabi", Country: "United Arab Emirates", Region: "Middle East", Lat: 24.4330, Lon: 54.6511},
	{Code: "IST", Name: "Istanbul Airport", City: "Istanbul", Country: "Turkey", Region: "Europe", Lat: 41.2753, Lon: 28.7519},
	{Code: "LHR", Name: "London Heathrow Airport", City: "London", Country: "United Kingdom", Region: "Europe", Lat: 51.4700, Lon: -0.4543},
	{Code: "LGW", Name: "London Gatwick Airport", City: "London", Country: "United Kingdom", Region: "Europe", Lat: 51.1537, Lon: -0.1821},
	{Code: "CDG", Name: "Charles de Gaulle Airport", City: "Paris", Country: "France", Region: "Europe", Lat: 49.0097, Lon: 2.5479},
	{Code: "AMS", Name: "Amsterdam Airport Schiphol", City: "Amsterdam", Country: "Netherlands", Region: "Europe", Lat: 52.3105, Lon: 4.7683},
	{Code: "FRA", Name: "Frankfurt Airport", City: "Frankfurt", Country: "Germany", Region: "Europe", Lat: 50.0379, Lon: 8.5622},
	{Code: "MAD", Name: "Adolfo Suarez Madrid-Barajas Airport", City: "Madrid", Country: "Spain", Region: "Europe", Lat: 40.4839, Lon: -3.5680},
	{Code: "BCN", Name: "Josep Tarradellas Barcelona-El Prat Airport", City: "Barcelona", Country: "Spain", Region: "Europe", Lat: 41.2974, Lon: 2.0833},
	{Code: "FCO", Name: "Leonardo da Vinci-Fiumicino Airport", City: "Rome", Country: "Italy", Region: "Europe", Lat: 41.8003, Lon: 12.2389},
	{Code: "ATH", Name: "Athens International Airport", City: "Athens", Country: "Greece", Region: "Europe", Lat: 37.9364, Lon: 23.9445},
	{Code: "ZRH", Name: "Zurich Airport", City: "Zurich", Country: "Switzerland", Region: "Europe", Lat: 47.4647, Lon: 8.5492},
	{Code: "LAX", Name: "Los Angeles International Airport", City: "Los Angeles", Country: "United States", Region: "North America", Lat: 33.9416, Lon: -118.4085},
	{Code: "SFO", Name: "San Francisco International Airport", City: "San Francisco", Country: "United States", Region: "North America", Lat: 37.6213, Lon: -122.3790},
	{Code: "JFK", Name: "John F. Kennedy International Airport", City: "New York", Country: "United States", Region: "North America", Lat: 40.6413, Lon: -73.7781},
	{Code: "SEA", Name: "Seattle-Tacoma International Airport", City: "Seattle", Country: "United States", Region: "North America", Lat: 47.4502, Lon: -122.3088},
	{Code: "HNL", Name: "Daniel K. Inouye International Airport", City: "Honolulu", Country: "United States", Region: "North America", Lat: 21.3187, Lon: -157.9225},
	{Code: "DEN", Name: "Denver International Airport", City: "Denver", Country: "United States", Region: "North America", Lat: 39.8561, Lon: -104.6737},
	{Code: "ORD", Name: "O'Hare International Airport", City: "Chicago", Country: "United States", Region: "North America", Lat: 41.9742, Lon: -87.9073},
	{Code: "YVR", Name: "Vancouver International Airport", City: "Vancouver", Country: "Canada", Region: "North America", Lat: 49.1967, Lon: -123.1815},
	{Code: "YYZ", Name: "Toronto Pearson International Airport", City: "Toronto", Country: "Canada", Region: "North America", Lat: 43.6777, Lon: -79.6248},
	{Code: "MEX", Name: "Mexico City International Airport", City: "Mexico City", Country: "Mexico", Region: "North America", Lat: 19.4361, Lon: -99.0719},
	{Code: "SCL", Name: "Arturo Merino Benitez International Airport", City: "Santiago", Country: "Chile", Region: "South America", Lat: -33.3930, Lon: -70.7858},
	{Code: "EZE", Name: "Ministro Pistarini International Airport", City: "Buenos Aires", Country: "Argentina", Region: "South America", Lat: -34.8222, Lon: -58.5358},
	{Code: "GRU", Name: "Sao Paulo-Guarulhos International Airport", City: "São Paulo", Country: "Brazil", Region: "South America", Lat: -23.4356, Lon: -46.4731},
	{Code: "LIM", Name: "Jorge Chavez International Airport", City: "Lima", Country: "Peru", Region: "South America", Lat: -12.0219, Lon: -77.1143},
	{Code: "JNB", Name: "O.R. Tambo International Airport", City: "Johannesburg", Country: "South Africa", Region: "Africa", Lat: -26.1392, Lon: 28.2460},
	{Code: "CPT", Name: "Cape Town International Airport", City: "Cape Town", Country: "South Africa", Region: "Africa", Lat: -33.9649, Lon: 18.6017},
	{Code: "CAI", Name: "Cairo International Airport", City: "Cairo", Country: "Egypt", Region: "Africa", Lat: 30.1219, Lon: 31.4056},
	{Code: "MRU", Name: "Sir Seewoosagur Ramgoolam International Airport", City: "Port Louis", Country: "Mauritius", Region: "Africa", Lat: -20.4302, Lon: 57.6836},
}

// preferredCityCodes maps multi-airport cities to the airport deals are
// usually quoted against.
var preferredCityCodes = map[string]string{
	"tokyo":        "NRT",
	"london":       "LHR",
	"new york":     "JFK",
	"paris":        "CDG",
	"osaka":        "KIX",
	"sao paulo":    "GRU",
	"buenos aires": "EZE",
	"bangkok":      "BKK",
	"chicago":      "ORD",
	"seoul":        "ICN",
	"shanghai":     "PVG",
	"beijing":      "PEK",
	"dubai":        "DXB",
	"milan":        "MXP",
	"rome":         "FCO",
	"moscow":       "SVO",
	"washington":   "IAD",
	"houston":      "IAH",
	"dallas":       "DFW",
	"san paulo":    "GRU",
}
