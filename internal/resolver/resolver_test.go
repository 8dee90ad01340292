package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEmptyBindingsIsResolved(t *testing.T) {
	resp := Resolve(Context{ModelID: "llm/x/y", PlatformKey: "linux-x86_64"}, nil)
	require.Equal(t, StateResolved, resp.ValidationState)
	require.Empty(t, resp.MissingPins)
}

func TestResolveUnpinnedDependency_S4(t *testing.T) {
	profile := &Profile{
		ProfileID: "p1", ProfileVersion: "1", ProfileHash: "h1",
		DependencyContractVersion: 1,
		PythonPackages: []PackageSpec{
			{Name: "torch", VersionSpec: ">=2.5"},
		},
	}
	bindings := []BindingInput{
		{BindingID: "b1", ProfileID: "p1", ProfileVersion: "1", BindingKind: "required_core", BackendKey: "pytorch", Profile: profile},
	}

	resp := Resolve(Context{ModelID: "llm/x/y", PlatformKey: "linux-x86_64", BackendKey: "pytorch"}, bindings)

	require.Equal(t, StateManualInterventionRequired, resp.ValidationState)
	require.Equal(t, []string{"torch"}, resp.MissingPins)
	require.Len(t, resp.Bindings, 1)
	require.Equal(t, StateManualInterventionRequired, resp.Bindings[0].ValidationState)
	require.Equal(t, "unpinned_dependency", resp.Bindings[0].ValidationErrors[0].Code)
}

func TestResolveProfileConflict_S5(t *testing.T) {
	p1 := &Profile{ProfileID: "p1", ProfileVersion: "1", ProfileHash: "hashA", DependencyContractVersion: 1}
	p2 := &Profile{ProfileID: "p1", ProfileVersion: "1", ProfileHash: "hashB", DependencyContractVersion: 1}

	bindings := []BindingInput{
		{BindingID: "b1", ProfileID: "p1", ProfileVersion: "1", BindingKind: "required_core", Profile: p1},
		{BindingID: "b2", ProfileID: "p1", ProfileVersion: "1", BindingKind: "required_core", Profile: p2},
	}

	resp := Resolve(Context{ModelID: "llm/x/y", PlatformKey: "linux-x86_64"}, bindings)
	require.Equal(t, StateProfileConflict, resp.ValidationState)
}

func TestResolveExactPinResolved(t *testing.T) {
	profile := &Profile{
		ProfileID: "p1", ProfileVersion: "1", ProfileHash: "h1",
		DependencyContractVersion: 1,
		PythonPackages: []PackageSpec{
			{Name: "torch", VersionSpec: "==2.5.0"},
		},
	}
	bindings := []BindingInput{
		{BindingID: "b1", ProfileID: "p1", ProfileVersion: "1", BindingKind: "required_core", BackendKey: "pytorch", Profile: profile},
	}

	resp := Resolve(Context{ModelID: "llm/x/y", PlatformKey: "linux-x86_64", BackendKey: "pytorch"}, bindings)
	require.Equal(t, StateResolved, resp.ValidationState)
	require.Empty(t, resp.MissingPins)
	require.Equal(t, "2.5.0", resp.Bindings[0].Requirements[0].ExactPin)
}

func TestResolveDeterministicOrdering(t *testing.T) {
	profile := &Profile{ProfileID: "p1", ProfileVersion: "1", ProfileHash: "h1", DependencyContractVersion: 1}
	bindings := []BindingInput{
		{BindingID: "b2", ProfileID: "p1", ProfileVersion: "1", BindingKind: "optional_accel", Profile: profile},
		{BindingID: "b1", ProfileID: "p1", ProfileVersion: "1", BindingKind: "required_core", Profile: profile},
	}

	resp1 := Resolve(Context{ModelID: "llm/x/y", PlatformKey: "linux-x86_64"}, bindings)
	resp2 := Resolve(Context{ModelID: "llm/x/y", PlatformKey: "linux-x86_64"}, bindings)

	require.Equal(t, resp1.Bindings[0].BindingID, resp2.Bindings[0].BindingID)
	require.Equal(t, "optional_accel", resp1.Bindings[0].BindingKind)
}
