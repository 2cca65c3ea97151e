package by

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator_IsConfident(t *testing.T) {
	tests := []struct {
		loc  Locator
		want bool
	}{
		{ID("login"), true},
		{Name("user"), true},
		{XPath("//div[@id='main']"), true},
		{XPath("//input[@name='q']"), true},
		{XPath("/html"), true},
		{XPath(".//html"), true},
		{XPath("//div/span"), false},
		{TagName("td"), false},
		{ClassName("btn"), false},
		{CSSSelector("#login"), false},
		{LinkText("Home"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.loc.IsConfident(), tt.loc.String())
	}
}

func TestLocator_HasIDAndName(t *testing.T) {
	assert.True(t, ID("a").HasID())
	assert.False(t, ID("a").HasName())
	assert.True(t, Name("a").HasName())
	assert.False(t, Name("a").HasID())
	assert.False(t, XPath("//a[@href]").HasID())
	assert.True(t, XPath("//a[@name]").HasName())
}

func TestLocator_HasXPath(t *testing.T) {
	for _, l := range []Locator{ID("a"), Name("a"), TagName("a"), XPath("//a"), ClassName("a")} {
		assert.True(t, l.HasXPath(), l.String())
	}
	for _, l := range []Locator{CSSSelector("a"), LinkText("a"), PartialLinkText("a")} {
		assert.False(t, l.HasXPath(), l.String())
	}
}

func TestLocator_ToXPath(t *testing.T) {
	tests := []struct {
		loc  Locator
		want string
	}{
		{ID("x"), ".//*[@id='x']"},
		{Name("x"), ".//*[@name='x']"},
		{TagName("td"), ".//td"},
		{ClassName("c"), ".//*[contains(concat(' ', normalize-space(@class), ' '), ' c ')]"},
		{XPath("//a"), "//a"},
	}
	for _, tt := range tests {
		got, err := tt.loc.ToXPath()
		require.NoError(t, err)
		assert.Equal(t, XPath(tt.want), got)
	}

	_, err := CSSSelector("div").ToXPath()
	assert.Error(t, err)
}

func TestLocator_Concat(t *testing.T) {
	parent := XPath("//table[@class='grid']")

	t.Run("relative is appended", func(t *testing.T) {
		got, err := parent.Concat(XPath(".//td"))
		require.NoError(t, err)
		assert.Equal(t, XPath("//table[@class='grid']//td"), got)
	})

	t.Run("confident returned unchanged", func(t *testing.T) {
		got, err := parent.Concat(ID("cell"))
		require.NoError(t, err)
		assert.Equal(t, ID("cell"), got)
	})

	t.Run("already prefixed returned unchanged", func(t *testing.T) {
		child := XPath("//table[@class='grid']/tr[1]")
		got, err := parent.Concat(child)
		require.NoError(t, err)
		assert.Equal(t, child, got)
	})

	t.Run("empty root xpath keeps other", func(t *testing.T) {
		got, err := XPath("").Concat(TagName("td"))
		require.NoError(t, err)
		assert.Equal(t, TagName("td"), got)
	})

	t.Run("tag converted", func(t *testing.T) {
		got, err := parent.Concat(TagName("tr"))
		require.NoError(t, err)
		assert.Equal(t, XPath("//table[@class='grid']//tr"), got)
	})

	t.Run("css cannot be concatenated", func(t *testing.T) {
		_, err := CSSSelector(".grid").Concat(TagName("tr"))
		assert.Error(t, err)
	})
}

func TestLocator_Append(t *testing.T) {
	got, err := XPath("//tr").Append("following-sibling::tr")
	require.NoError(t, err)
	assert.Equal(t, XPath("//tr/following-sibling::tr"), got)
}

func TestConcat(t *testing.T) {
	got, err := Concat(XPath("//form"), XPath("div"), XPath("./span"))
	require.NoError(t, err)
	assert.Equal(t, XPath("//form//div//span"), got)
}

func TestAppendLocators(t *testing.T) {
	got, err := AppendLocators(XPath("//form"), ID("user"), TagName("input"))
	require.NoError(t, err)
	assert.Equal(t, XPath("//form//*[@id='user']//input"), got)

	_, err = AppendLocators(XPath("//form"), LinkText("Home"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	l, err := Parse("CSS", "#a")
	require.NoError(t, err)
	assert.Equal(t, CSSSelector("#a"), l)

	_, err = Parse("bogus", "x")
	assert.Error(t, err)
}

func TestLocator_String(t *testing.T) {
	assert.Equal(t, "By.id: login", ID("login").String())
	assert.Equal(t, "<nil>", Locator{}.String())
}
