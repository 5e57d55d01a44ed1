package loadtest

import (
	"fmt"
)

// checkFigures verifies a published snapshot belongs to the last change a
// session submitted. A newer version than expected means another client
// wrote to the session, which the load test never does.
func checkFigures(resp figuresResponse, o outcome) error {
	if resp.Version != o.version {
		return fmt.Errorf("published version %d, last submitted %d", resp.Version, o.version)
	}
	if resp.Figures == nil {
		return fmt.Errorf("version %d published without figures", resp.Version)
	}
	if got := resp.Figures.Inputs.Normalize(); got != o.inputs {
		return fmt.Errorf("figures rendered from %+v, last submitted %+v", got, o.inputs)
	}
	return nil
}
