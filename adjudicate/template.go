package adjudicate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/condition"
)

var templateToken = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// interpolate substitutes {field.path} tokens in a reason template with
// values resolved from the claim snapshot. Tokens whose path does not resolve
// are left in place so a reviewer can see the template expected a field the
// claim did not carry.
func interpolate(template string, facts condition.Facts) string {
	return templateToken.ReplaceAllStringFunc(template, func(token string) string {
		path := token[1 : len(token)-1]
		v, ok := facts.Resolve(path)
		if !ok {
			return token
		}
		switch x := v.(type) {
		case string:
			return x
		case decimal.Decimal:
			return x.StringFixed(2)
		case time.Time:
			return x.UTC().Format("2006-01-02")
		default:
			return fmt.Sprintf("%v", x)
		}
	})
}
