package costs

import "strings"

const perMillion = 1_000_000.0

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// anthropicPrices matches model families by substring.
var anthropicPrices = []struct {
	family string
	price  price
}{
	{family: "haiku", price: price{input: 0.80, output: 4.00}},
	{family: "sonnet", price: price{input: 3.00, output: 15.00}},
	{family: "opus", price: price{input: 15.00, output: 75.00}},
}

// EstimateUSD returns the estimated USD cost of one oracle call. ok is false
// when no local pricing exists for the provider and model; such calls are
// still recorded with zero cost.
func EstimateUSD(providerName, model string, inputTokens, outputTokens int) (usd float64, ok bool) {
	if !strings.EqualFold(strings.TrimSpace(providerName), "anthropic") {
		return 0, false
	}
	modelName := strings.ToLower(strings.TrimSpace(model))
	for _, entry := range anthropicPrices {
		if strings.Contains(modelName, entry.family) {
			return float64(inputTokens)/perMillion*entry.price.input +
				float64(outputTokens)/perMillion*entry.price.output, true
		}
	}
	return 0, false
}
