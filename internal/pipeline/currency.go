package pipeline

import "strings"

// suffixRule maps an exchange ticker suffix to the currency that exchange
// quotes in. Suffix detection is more reliable than country metadata, so
// a matching suffix always wins over the country code.
type suffixRule struct {
	suffix   string
	currency string
}

var suffixRules = []suffixRule{
	{".JK", "IDR"}, // Jakarta
	{".SN", "CLP"}, // Santiago
	{".SR", "SAR"}, // Saudi (Tadawul)
	{".TA", "ILS"}, // Tel Aviv
	{".BA", "ARS"}, // Buenos Aires
	{".L", "GBP"},  // London
	{".JO", "ZAR"}, // Johannesburg
	{".CO", "COP"}, // Colombia
	{".LM", "PEN"}, // Lima
	{".EG", "EGP"}, // Egypt
	{".IS", "TRY"}, // Istanbul
	{".ME", "RUB"}, // Moscow
	{".KS", "KRW"}, // Korea (KOSPI)
	{".KQ", "KRW"}, // Korea (KOSDAQ)
	{".BO", "INR"}, // Bombay
	{".NS", "INR"}, // NSE India
	{".SA", "BRL"}, // Sao Paulo
	{".MX", "MXN"}, // Mexico
	{".BK", "THB"}, // Bangkok
	{".KL", "MYR"}, // Kuala Lumpur
	{".PS", "PHP"}, // Philippines
	{".VN", "VND"}, // Vietnam
	{".TW", "TWD"}, // Taiwan
	{".HK", "HKD"}, // Hong Kong
	{".SI", "SGD"}, // Singapore
	{".T", "JPY"},  // Tokyo
	{".SS", "CNY"}, // Shanghai
	{".SZ", "CNY"}, // Shenzhen
	{".AX", "AUD"}, // Australia
	{".TO", "CAD"}, // Toronto
	{".PA", "EUR"}, // Paris
	{".DE", "EUR"}, // Deutsche Boerse
}

var countryCurrencies = map[string]string{
	"ID": "IDR",
	"CL": "CLP",
	"SA": "SAR",
	"IL": "ILS",
	"AR": "ARS",
	"GB": "GBP",
	"ZA": "ZAR",
	"CO": "COP",
	"PE": "PEN",
	"EG": "EGP",
	"TR": "TRY",
	"RU": "RUB",
	"KR": "KRW",
	"IN": "INR",
	"BR": "BRL",
	"MX": "MXN",
	"TH": "THB",
	"MY": "MYR",
	"PH": "PHP",
	"VN": "VND",
	"TW": "TWD",
	"HK": "HKD",
	"SG": "SGD",
	"JP": "JPY",
	"CN": "CNY",
	"AU": "AUD",
	"CA": "CAD",
	// Euro zone
	"FR": "EUR",
	"DE": "EUR",
	"IT": "EUR",
	"ES": "EUR",
	"NL": "EUR",
	"BE": "EUR",
	"AT": "EUR",
	"PT": "EUR",
	"GR": "EUR",
	"FI": "EUR",
	"IE": "EUR",
}

// usdRates holds fixed approximate conversion rates to USD. These back
// the emergency correction only; they are deliberately coarse and never
// used for display purposes.
var usdRates = map[string]float64{
	"IDR": 0.000065,
	"CLP": 0.0010,
	"SAR": 0.267,
	"ILS": 0.27,
	"ARS": 0.0010,
	"GBP": 1.26,
	"ZAR": 0.055,
	"COP": 0.00025,
	"PEN": 0.27,
	"EGP": 0.020,
	"TRY": 0.029,
	"RUB": 0.010,
	"KRW": 0.00075,
	"INR": 0.012,
	"BRL": 0.18,
	"MXN": 0.058,
	"THB": 0.029,
	"MYR": 0.22,
	"PHP": 0.018,
	"VND": 0.000040,
	"TWD": 0.031,
	"HKD": 0.128,
	"SGD": 0.74,
	"JPY": 0.0067,
	"CNY": 0.14,
	"AUD": 0.64,
	"CAD": 0.74,
	"EUR": 1.08,
}

// DetectCurrency infers the likely reporting currency of a listing from
// its ticker suffix, falling back to the country code. Unmatched input
// defaults to USD.
func DetectCurrency(ticker, country string) string {
	ticker = strings.ToUpper(ticker)
	country = strings.ToUpper(country)

	for _, rule := range suffixRules {
		if strings.HasSuffix(ticker, rule.suffix) {
			return rule.currency
		}
	}

	if currency, ok := countryCurrencies[country]; ok {
		return currency
	}

	return "USD"
}

// RateToUSD returns the fixed approximate USD conversion rate for a
// currency code. ok is false for unknown codes; callers must treat that
// as "no correction possible" rather than assuming 1.0.
func RateToUSD(currency string) (float64, bool) {
	rate, ok := usdRates[strings.ToUpper(currency)]
	return rate, ok
}
