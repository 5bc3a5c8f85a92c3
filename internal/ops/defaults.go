package ops

import "github.com/shopspring/decimal"

var defaultChain = []RegionConfig{
	{Name: "Asia", Port: 1111},
	{Name: "Africa", Port: 2222},
	{Name: "Europe", Port: 3333},
	{Name: "America", Port: 4444},
}

var defaultExchanges = []ExchangeConfig{
	{Name: "Bombay", Port: 10000, Currency: "INR", Rate: decimal.RequireFromString("0.015"), Region: "Asia"},
	{Name: "Brussels", Port: 10001, Currency: "EUR", Rate: decimal.RequireFromString("1.11"), Region: "Europe"},
	{Name: "EuronextParis", Port: 10002, Currency: "EUR", Rate: decimal.RequireFromString("1.11"), Region: "Europe"},
	{Name: "Frankfurt", Port: 10003, Currency: "EUR", Rate: decimal.RequireFromString("1.11"), Region: "Europe"},
	{Name: "HongKong", Port: 10004, Currency: "HKD", Rate: decimal.RequireFromString("0.13"), Region: "Asia"},
	{Name: "Johannesburg", Port: 10005, Currency: "ZAR", Rate: decimal.RequireFromString("0.077"), Region: "Africa"},
	{Name: "Lisbon", Port: 10006, Currency: "EUR", Rate: decimal.RequireFromString("1.11"), Region: "Europe"},
	{Name: "London", Port: 10007, Currency: "GBP", Rate: decimal.RequireFromString("1.28"), Region: "Europe"},
	{Name: "NewYorkStockExchange", Port: 10008, Currency: "USD", Rate: decimal.RequireFromString("1.0"), Region: "America"},
	{Name: "SaoPaulo", Port: 10009, Currency: "BRL", Rate: decimal.RequireFromString("0.31"), Region: "America"},
	{Name: "Seoul", Port: 10010, Currency: "KRW", Rate: decimal.RequireFromString("0.00089"), Region: "Asia"},
	{Name: "Shanghai", Port: 10011, Currency: "CNY", Rate: decimal.RequireFromString("0.15"), Region: "Asia"},
	{Name: "Shenzhen", Port: 10012, Currency: "CNY", Rate: decimal.RequireFromString("0.15"), Region: "Asia"},
	{Name: "Sydney", Port: 10013, Currency: "AUD", Rate: decimal.RequireFromString("0.74"), Region: "Asia"},
	{Name: "Tokyo", Port: 10014, Currency: "JPY", Rate: decimal.RequireFromString("0.0090"), Region: "Asia"},
	{Name: "Toronto", Port: 10015, Currency: "CAD", Rate: decimal.RequireFromString("0.74"), Region: "America"},
	{Name: "Zurich", Port: 10016, Currency: "EUR", Rate: decimal.RequireFromString("1.11"), Region: "Europe"},
}

var defaultFunds = []FundConfig{
	{Name: "Mutual_Fund_Banking", Legs: []LegConfig{
		{Security: "DeutscheBank", Weight: decimal.RequireFromString("0.2")},
		{Security: "CREDITAGRICOLE", Weight: decimal.RequireFromString("0.2")},
		{Security: "SOCIETEGENERALE", Weight: decimal.RequireFromString("0.1")},
		{Security: "AmericanExpress", Weight: decimal.RequireFromString("0.2")},
		{Security: "GoldmanSachs", Weight: decimal.RequireFromString("0.1")},
		{Security: "JPMorganChase", Weight: decimal.RequireFromString("0.15")},
		{Security: "NomuraHoldingsInc", Weight: decimal.RequireFromString("0.05")},
	}},
	{Name: "Mutual_Fund_Energy", Legs: []LegConfig{
		{Security: "Petrobras", Weight: decimal.RequireFromString("0.15")},
		{Security: "BPPLC", Weight: decimal.RequireFromString("0.15")},
		{Security: "TOTAL", Weight: decimal.RequireFromString("0.4")},
		{Security: "ExxonMobil", Weight: decimal.RequireFromString("0.3")},
	}},
	{Name: "Mutual_Fund_Diversified", Legs: []LegConfig{
		{Security: "SwirePacificLimited", Weight: decimal.RequireFromString("0.15")},
		{Security: "SoftbankCorp", Weight: decimal.RequireFromString("0.35")},
		{Security: "SkyPLC", Weight: decimal.RequireFromString("0.4")},
		{Security: "DeutscheLufthansa", Weight: decimal.RequireFromString("0.1")},
	}},
}

// DefaultFileConfig returns the built-in world: four regions, seventeen
// exchanges and three mutual funds.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Host:              defaultHost,
		ReferenceCurrency: defaultReferenceCurrency,
		TickLengthMs:      defaultTickLength.Milliseconds(),
		Chain:             append([]RegionConfig(nil), defaultChain...),
		Exchanges:         append([]ExchangeConfig(nil), defaultExchanges...),
		Funds:             append([]FundConfig(nil), defaultFunds...),
	}
}

// Default builds the built-in tables. It panics only if the tables above are
// inconsistent.
func Default() Static {
	s, err := Build(DefaultFileConfig())
	if err != nil {
		panic(err)
	}
	return s
}
