package log_test

import (
	"fmt"

	slog "github.com/LerianStudio/lib-stablecoin/stablecoin/log"
)

func ExampleParseLevel() {
	level, err := slog.ParseLevel("warning")

	fmt.Println(err == nil)
	fmt.Println(level.String())

	// Output:
	// true
	// warn
}
