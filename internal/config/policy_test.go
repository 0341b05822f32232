package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	p := DefaultPolicy()
	assert.NoError(t, ValidatePolicy(p))
	assert.Equal(t, 90, p.Deletion.GraceDays)
	assert.Equal(t, 0.00001, p.Usage.ProcessingRatePerByte)
	assert.Equal(t, int64(10*1024*1024), p.Upload.MaxGenericBytes)
	assert.Equal(t, int64(100*1024*1024), p.Upload.MaxServiceBytes)
}

func TestValidatePolicyRejectsBadValues(t *testing.T) {
	cases := map[string]func(p *Policy){
		"grace":  func(p *Policy) { p.Deletion.GraceDays = 0 },
		"rate":   func(p *Policy) { p.Usage.ProcessingRatePerByte = 0 },
		"zero":   func(p *Policy) { p.Usage.ZeroThreshold = "maybe" },
		"files":  func(p *Policy) { p.Upload.MaxFiles = 0 },
		"upload": func(p *Policy) { p.Upload.MaxServiceBytes = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultPolicy()
			mutate(&p)
			assert.Error(t, ValidatePolicy(p))
		})
	}
}

func TestStaticPolicyHolder(t *testing.T) {
	p := DefaultPolicy()
	p.Deletion.GraceDays = 30
	holder := NewStaticPolicyHolder(p)
	assert.Equal(t, 30, holder.Get().Deletion.GraceDays)

	var nilHolder *PolicyHolder
	assert.Equal(t, 90, nilHolder.Get().Deletion.GraceDays)
}
