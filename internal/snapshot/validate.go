package snapshot

import "fmt"

// requiredKeys and their expected dynamic types. items must be an array,
// viewModel an object; reportId and generatedAt are strings.
var requiredKeys = []string{KeyReportID, KeyGeneratedAt, KeyItems, KeyViewModel}

// Validate reports whether doc satisfies the canonical snapshot shape.
// Missing or wrong-typed keys are listed by name so repair logs stay precise.
func Validate(doc map[string]any) (bool, []string) {
	if doc == nil {
		return false, []string{"snapshot content must be an object"}
	}

	var errs []string
	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			errs = append(errs, fmt.Sprintf("missing required key: %s", key))
		}
	}

	if v, ok := doc[KeyReportID]; ok {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, "'reportId' must be a string")
		}
	}
	if v, ok := doc[KeyGeneratedAt]; ok {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, "'generatedAt' must be a string")
		}
	}
	if v, ok := doc[KeyItems]; ok {
		if _, isList := v.([]any); !isList {
			errs = append(errs, "'items' must be a list")
		}
	}
	if v, ok := doc[KeyViewModel]; ok {
		if _, isObj := v.(map[string]any); !isObj {
			errs = append(errs, "'viewModel' must be an object")
		}
	}

	return len(errs) == 0, errs
}
