package integrations_test

import (
	"fmt"

	"github.com/matzehuels/pkghealth/pkg/integrations"
)

func ExampleNormalizeRepoURL() {
	// Repository fields in package documents come in several shapes
	fmt.Println(integrations.NormalizeRepoURL("git@github.com:expressjs/express.git"))
	fmt.Println(integrations.NormalizeRepoURL("git://github.com/expressjs/express"))
	fmt.Println(integrations.NormalizeRepoURL("git+https://github.com/expressjs/express.git"))
	// Output:
	// https://github.com/expressjs/express
	// https://github.com/expressjs/express
	// https://github.com/expressjs/express
}

func ExampleURLEncode() {
	// Scoped names must be escaped as a single path segment
	fmt.Println(integrations.URLEncode("@babel/core"))
	// Output:
	// %40babel%2Fcore
}

func ExampleStatusCode() {
	err := &integrations.StatusError{StatusCode: 503, URL: "https://registry.npmjs.org/express"}
	fmt.Println(integrations.StatusCode(err))
	fmt.Println(integrations.StatusCode(fmt.Errorf("wrapped: %w", err)))
	// Output:
	// 503
	// 503
}
