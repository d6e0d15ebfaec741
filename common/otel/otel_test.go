package otel_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/otel"
	"basegraph.app/scribe/core/config"
)

var _ = Describe("Setup", func() {
	It("is a no-op without an endpoint", func() {
		t, err := otel.Setup(context.Background(), config.OTelConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeNil())
	})
})

var _ = DescribeTable("ParseHeaders",
	func(in string, want map[string]string) {
		Expect(otel.ParseHeaders(in)).To(Equal(want))
	},
	Entry("empty", "", map[string]string{}),
	Entry("single pair", "api-key=abc", map[string]string{"api-key": "abc"}),
	Entry("trims whitespace", " a = 1 , b=2", map[string]string{"a": "1", "b": "2"}),
	Entry("keeps '=' inside values", "auth=Basic x==", map[string]string{"auth": "Basic x=="}),
	Entry("skips malformed pairs", "novalue,=x,k=v", map[string]string{"k": "v"}),
)

var _ = Describe("SignalURL", func() {
	It("joins without doubling slashes", func() {
		Expect(otel.SignalURL("http://collector:4318/", "traces")).To(Equal("http://collector:4318/v1/traces"))
		Expect(otel.SignalURL("http://collector:4318", "logs")).To(Equal("http://collector:4318/v1/logs"))
	})
})

var _ = Describe("Sampler", func() {
	It("describes the configured ratio", func() {
		Expect(otel.Sampler(1).Description()).To(ContainSubstring("AlwaysOnSampler"))
		Expect(otel.Sampler(0).Description()).To(ContainSubstring("AlwaysOffSampler"))
		Expect(otel.Sampler(0.25).Description()).To(ContainSubstring("TraceIDRatioBased{0.25}"))
	})
})
