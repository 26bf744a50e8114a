package pe

import (
	"testing"

	"github.com/alecthomas/assert"
	"github.com/woozymasta/pathrules"
)

func selectedPaths(t *testing.T, resources *ResourceManager, patterns ...string) []string {
	selected, err := resources.SelectResources(ParseResourceRules(patterns))
	assert.NoError(t, err)

	result := []string{}
	for _, resource := range selected {
		result = append(result, resource.PathString())
	}
	return result
}

func TestSelectResources(t *testing.T) {
	_, resources := openTestResources(t, resourceImage(4, richTree()).Build())

	assert.Equal(t, []string{"RT_ICON/1/1033", "RT_ICON/2/1033"},
		selectedPaths(t, resources, "RT_ICON/**"))

	assert.Equal(t, []string{"RT_ICON/1/1033", "RT_ICON/2/1033"},
		selectedPaths(t, resources, "rt_icon/**"))

	// The last matching rule wins.
	assert.Equal(t, []string{"RT_ICON/1/1033"},
		selectedPaths(t, resources, "RT_ICON/**", "!RT_ICON/2/**"))

	assert.Equal(t, []string{"CUSTOM/CONFIG/1033", "RT_MANIFEST/1/1033"},
		selectedPaths(t, resources, "CUSTOM/**", "RT_MANIFEST/**"))

	assert.Equal(t, len(richPayloads()), len(selectedPaths(t, resources)))
	assert.Equal(t, []string{}, selectedPaths(t, resources, "RT_BITMAP/**"))
}

func TestParseResourceRules(t *testing.T) {
	assert.Equal(t, []pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: "RT_ICON/**"},
		{Action: pathrules.ActionExclude, Pattern: "RT_ICON/2/**"},
	}, ParseResourceRules([]string{"RT_ICON/**", " ", "!RT_ICON/2/**"}))
}
