package generation_test

import (
	"fmt"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

func ExampleMap() {
	m := generation.Map(generation.EventContentGenerated)
	fmt.Println(m.Status, m.Progress, m.CurrentStep)
	fmt.Println(generation.EstimateRemaining(m.Progress))
	// Output:
	// in-progress 60 create-repo
	// 120
}
