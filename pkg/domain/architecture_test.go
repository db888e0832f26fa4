package domain

import (
	"testing"

	"catchcore/testutil"
)

// The domain layer must not depend on any internal implementation package.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not import internal packages")
}
