// Package apps loads the catalog of third-party apps users can connect.
package apps

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"

	"gopkg.in/yaml.v3"
)

// ErrAppNotFound is returned for names missing from the catalog.
var ErrAppNotFound = fmt.Errorf("%w: app", core.ErrNotFound)

// App describes one external application and the static OAuth client this
// platform uses with it.
type App struct {
	Name                string                     `yaml:"name"`
	DisplayName         string                     `yaml:"displayName"`
	AuthType            models.ConnectionType      `yaml:"authType"`
	ClientID            string                     `yaml:"clientId"`
	ClientSecret        string                     `yaml:"clientSecret"`
	AuthURL             string                     `yaml:"authUrl"`
	TokenURL            string                     `yaml:"tokenUrl"`
	AuthorizationMethod models.AuthorizationMethod `yaml:"authorizationMethod"`
	PKCE                bool                       `yaml:"pkce"`
	Scope               []string                   `yaml:"scope"`
}

type file struct {
	Apps []App `yaml:"apps"`
}

// Catalog is an immutable set of apps keyed by name.
type Catalog struct {
	apps map[string]App
}

// Load reads the catalog from a YAML file. ${VAR} references in values are
// expanded from the environment.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read apps config: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML bytes.
func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
		return nil, fmt.Errorf("parse apps config: %w", err)
	}

	c := &Catalog{apps: make(map[string]App, len(f.Apps))}
	for _, app := range f.Apps {
		if err := app.normalize(); err != nil {
			return nil, err
		}
		if _, dup := c.apps[app.Name]; dup {
			return nil, fmt.Errorf("apps config: duplicate app %q", app.Name)
		}
		c.apps[app.Name] = app
	}
	return c, nil
}

// New builds a catalog from apps already in memory.
func New(list ...App) (*Catalog, error) {
	c := &Catalog{apps: make(map[string]App, len(list))}
	for _, app := range list {
		if err := app.normalize(); err != nil {
			return nil, err
		}
		c.apps[app.Name] = app
	}
	return c, nil
}

func (a *App) normalize() error {
	if a.Name == "" {
		return fmt.Errorf("apps config: app without name")
	}
	if a.AuthType == "" {
		a.AuthType = models.ConnectionTypeOAuth2
	}
	if !a.AuthType.Valid() {
		return fmt.Errorf("apps config: app %q has unknown authType %q", a.Name, a.AuthType)
	}
	if a.DisplayName == "" {
		a.DisplayName = a.Name
	}
	if a.AuthType != models.ConnectionTypeOAuth2 {
		return nil
	}

	if a.TokenURL == "" || a.ClientID == "" {
		return fmt.Errorf("apps config: oauth2 app %q needs tokenUrl and clientId", a.Name)
	}
	switch a.AuthorizationMethod {
	case "":
		a.AuthorizationMethod = models.AuthorizationMethodBody
	case models.AuthorizationMethodBody, models.AuthorizationMethodHeader:
	default:
		return fmt.Errorf("apps config: app %q has unknown authorizationMethod %q",
			a.Name, a.AuthorizationMethod)
	}
	return nil
}

// Lookup returns the app registered under name.
func (c *Catalog) Lookup(name string) (App, error) {
	app, ok := c.apps[name]
	if !ok {
		return App{}, fmt.Errorf("%w: %s", ErrAppNotFound, name)
	}
	return app, nil
}

// Names lists the app names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.apps))
	for name := range c.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
