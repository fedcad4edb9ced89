package bus

import (
	"testing"
	"time"
)

func TestBundlerOptionsMerged(t *testing.T) {
	base := BundlerOptions{Every: 50 * time.Millisecond, MaxBytes: 100}

	tests := []struct {
		name string
		over *BundlerOptions
		want BundlerOptions
	}{
		{"nil keeps base", nil, base},
		{"zero fields keep base", &BundlerOptions{}, base},
		{
			"interval override",
			&BundlerOptions{Every: time.Second},
			BundlerOptions{Every: time.Second, MaxBytes: 100},
		},
		{
			"size override",
			&BundlerOptions{MaxBytes: 5},
			BundlerOptions{Every: 50 * time.Millisecond, MaxBytes: 5},
		},
		{
			"full override",
			&BundlerOptions{Every: time.Second, MaxBytes: 5},
			BundlerOptions{Every: time.Second, MaxBytes: 5},
		},
	}

	for _, tt := range tests {
		if got := base.merged(tt.over); got != tt.want {
			t.Errorf("%s: merged = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestOptionsSetDefaults(t *testing.T) {
	var o Options
	o.SetDefaults()

	def := DefaultOptions()
	if o != def {
		t.Errorf("SetDefaults on zero Options = %+v, want %+v", o, def)
	}

	o = Options{Hostname: "example.com", Port: 9000}
	o.SetDefaults()
	if o.Hostname != "example.com" || o.Port != 9000 {
		t.Errorf("SetDefaults clobbered explicit fields: %+v", o)
	}
	if o.Adapter != def.Adapter || o.Bundler.Every != def.Bundler.Every {
		t.Errorf("SetDefaults left zero fields unset: %+v", o)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults are valid", func(o *Options) {}, false},
		{"negative port", func(o *Options) { o.Port = -1 }, true},
		{"port too large", func(o *Options) { o.Port = 70000 }, true},
		{"zero interval", func(o *Options) { o.Bundler.Every = 0 }, true},
		{"negative max bytes", func(o *Options) { o.Bundler.MaxBytes = -1 }, true},
	}

	for _, tt := range tests {
		o := DefaultOptions()
		tt.mutate(&o)
		err := o.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
