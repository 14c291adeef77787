package auth

import "fmt"

// Protected resource namespaces used by the HTTP routes.
const (
	ResourceDepartment  = "department"
	ResourceRoles       = "roles"
	ResourcePermissions = "permissions"
	ResourceUsers       = "users"
)

// BuiltinResources is the default set seeded when no manifest is provided.
var BuiltinResources = []string{
	ResourceDepartment,
	"job",
	"employee",
	"presence",
	ResourceRoles,
	ResourcePermissions,
	ResourceUsers,
}

// PermissionName is the deterministic name given to a seeded (resource, action) pair.
func PermissionName(resource string, action Action) string {
	return fmt.Sprintf("%s_%s", action, resource)
}

// CatalogFor returns one permission per (resource, action) pair, in resource order.
func CatalogFor(resources []string) []Permission {
	out := make([]Permission, 0, len(resources)*len(Actions))
	for _, res := range dedupeStrings(resources) {
		for _, action := range Actions {
			out = append(out, Permission{
				Name:        PermissionName(res, action),
				Resource:    res,
				Action:      action,
				Description: fmt.Sprintf("Allows %s on %s", action, res),
			})
		}
	}
	return out
}
