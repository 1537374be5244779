package di_test

import (
	"testing"

	"github.com/fd1az/savvy-farm/internal/di"
)

type counter struct{ n int }

func TestContainer_FactoryRunsOnce(t *testing.T) {
	c := di.NewContainer()
	tok := di.NewToken[*counter]("test:counter")

	builds := 0
	di.RegisterToken(c, tok, func(sr di.ServiceRegistry) *counter {
		builds++
		return &counter{n: 7}
	})

	a := di.GetToken(c, tok)
	b := di.GetToken(c, tok)

	if a != b {
		t.Error("expected the same instance on every resolve")
	}
	if builds != 1 {
		t.Errorf("expected factory to run once, ran %d times", builds)
	}
	if a.n != 7 {
		t.Errorf("expected n=7, got %d", a.n)
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", "bsc-test")

	tok := di.NewToken[string]("test:network")
	di.RegisterToken(c, tok, func(sr di.ServiceRegistry) string {
		return sr.Get("config").(string) + "/farm"
	})

	if got := di.GetToken(c, tok); got != "bsc-test/farm" {
		t.Errorf("expected bsc-test/farm, got %s", got)
	}
	if !c.Has("config") {
		t.Error("expected config to be registered")
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	di.NewContainer().Get("missing")
}
