package memctx_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestProjectionInvariants(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Context Projection Invariants Suite")
}
