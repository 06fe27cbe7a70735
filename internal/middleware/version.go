package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	HeaderAPIVersion    = "X-API-Version"
	HeaderAPIDeprecated = "X-API-Deprecated"
	HeaderAPISunset     = "X-API-Sunset"
)

// APIVersion describes one mounted API generation.
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// VersionMiddleware stamps responses with the API version they were served by.
type VersionMiddleware struct {
	mu       sync.RWMutex
	versions map[string]APIVersion
	current  string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		versions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active", Message: "Current stable API version"},
		},
		current: "v1",
	}
}

func (vm *VersionMiddleware) lookup(version string) (APIVersion, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	v, ok := vm.versions[version]
	return v, ok
}

// VersionHeader sets the version headers, plus deprecation headers once a
// sunset date is known.
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(HeaderAPIVersion, version)
			if ver, ok := vm.lookup(version); ok && ver.Status == "deprecated" && ver.SunsetDate != nil {
				h.Set(HeaderAPIDeprecated, "true")
				h.Set(HeaderAPISunset, ver.SunsetDate.Format(time.RFC3339))
			}
			return next(c)
		}
	}
}

// VersionRoute mounts a group under /<version>.
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	group := e.Group("/" + version)
	group.Use(vm.VersionHeader(version))
	return group
}

func (vm *VersionMiddleware) Deprecate(version, message string, sunset time.Time) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.versions[version] = APIVersion{Version: version, Status: "deprecated", SunsetDate: &sunset, Message: message}
}

func (vm *VersionMiddleware) GetCurrentVersion() string {
	return vm.current
}

// ListVersions serves the known versions, oldest first.
func (vm *VersionMiddleware) ListVersions(c echo.Context) error {
	vm.mu.RLock()
	out := make([]APIVersion, 0, len(vm.versions))
	for _, v := range vm.versions {
		out = append(out, v)
	}
	vm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return c.JSON(http.StatusOK, map[string]interface{}{"current": vm.current, "versions": out})
}
