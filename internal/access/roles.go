package access

import (
	"fmt"
	"sort"
)

// ModuleCatalog names every module and the features it exposes. Permission
// editors and the predefined role templates draw from this single catalog.
var ModuleCatalog = map[string][]string{
	"dashboard":        {"view_metrics", "view_alerts", "export_data"},
	"dataQuery":        {"run_queries", "save_queries", "export_results", "schedule_queries"},
	"uptimeMonitoring": {"view_status", "configure_monitors", "view_alerts", "view_reports"},
	"webpageScan":      {"start_scan", "view_results", "download_reports", "schedule_scans"},
	"pdfScan":          {"upload_pdf", "view_results", "download_reports"},
	"sitemap":          {"generate_sitemap", "view_structure", "export_sitemap"},
	"scanMonitor":      {"view_scans", "cancel_scans", "retry_scans", "view_logs"},
	"scansScheduler":   {"create_schedules", "edit_schedules", "delete_schedules", "view_schedules"},
	"intake":           {"create_intake", "edit_intake", "view_intakes", "approve_intakes"},
	"manualTesting":    {"create_test", "edit_test", "view_tests", "score_tests", "upload_evidence"},
	"pdfRemediation":   {"view_issues", "remediate_pdf", "track_progress", "export_fixed"},
	"guidelines":       {"view_guidelines", "download_resources", "search_content"},
	"settings":         {"view_settings", "edit_domains", "edit_branding", "edit_integrations"},
	ModuleUsersRoles:   {"view_users", FeatureCreateUsers, "edit_users", FeatureManageGroups, "view_audit_logs"},
}

// modulePermission builds a ModulePermission from the catalog with a default
// level and optional per-feature overrides.
func modulePermission(moduleKey string, level AccessLevel, overrides map[string]AccessLevel) ModulePermission {
	features := ModuleCatalog[moduleKey]
	perm := ModulePermission{ModuleKey: moduleKey, AccessLevel: level}
	for _, featureKey := range features {
		featureLevel := level
		if override, ok := overrides[featureKey]; ok {
			featureLevel = override
		}
		perm.Features = append(perm.Features, FeaturePermission{
			FeatureKey:  featureKey,
			AccessLevel: featureLevel,
		})
	}
	return perm
}

// RoleTemplate is a predefined role before it is bound to a tenant.
type RoleTemplate struct {
	Name        string
	RoleType    RoleType
	Description string
	Permissions []ModulePermission
}

// PredefinedRoles are the system role bundles every tenant receives.
var PredefinedRoles = map[RoleType]RoleTemplate{
	RoleViewer: {
		Name:        "Viewer",
		RoleType:    RoleViewer,
		Description: "Read-only access to dashboards, data queries, and guidelines",
		Permissions: []ModulePermission{
			modulePermission("dashboard", LevelRead, nil),
			modulePermission("dataQuery", LevelRead, nil),
			modulePermission("guidelines", LevelRead, nil),
		},
	},
	RoleAdministrator: {
		Name:        "Administrator",
		RoleType:    RoleAdministrator,
		Description: "Can run assessments and view results, but cannot manage users or settings",
		Permissions: []ModulePermission{
			modulePermission("dashboard", LevelRead, nil),
			modulePermission("dataQuery", LevelRead, nil),
			modulePermission("webpageScan", LevelExecute, nil),
			modulePermission("pdfScan", LevelExecute, nil),
			modulePermission("sitemap", LevelExecute, nil),
			modulePermission("scanMonitor", LevelRead, nil),
			modulePermission("scansScheduler", LevelExecute, nil),
			modulePermission("guidelines", LevelRead, nil),
		},
	},
	RoleOperatingUnitAdmin: {
		Name:        "Operating Unit Administrator",
		RoleType:    RoleOperatingUnitAdmin,
		Description: "Full access to all modules within their operating unit",
		Permissions: []ModulePermission{
			modulePermission("dashboard", LevelRead, nil),
			modulePermission("dataQuery", LevelRead, nil),
			modulePermission("uptimeMonitoring", LevelExecute, nil),
			modulePermission("webpageScan", LevelExecute, nil),
			modulePermission("pdfScan", LevelExecute, nil),
			modulePermission("sitemap", LevelExecute, nil),
			modulePermission("scanMonitor", LevelRead, nil),
			modulePermission("scansScheduler", LevelExecute, nil),
			modulePermission("intake", LevelWrite, nil),
			modulePermission("settings", LevelWrite, map[string]AccessLevel{
				"view_settings": LevelRead,
			}),
			modulePermission("guidelines", LevelRead, nil),
		},
	},
	RoleRemediatorTester: {
		Name:        "Remediator/Tester",
		RoleType:    RoleRemediatorTester,
		Description: "Assessment modules plus manual testing and remediation tools",
		Permissions: []ModulePermission{
			modulePermission("dashboard", LevelRead, nil),
			modulePermission("dataQuery", LevelRead, nil),
			modulePermission("webpageScan", LevelExecute, nil),
			modulePermission("pdfScan", LevelExecute, nil),
			modulePermission("sitemap", LevelExecute, nil),
			modulePermission("scanMonitor", LevelRead, nil),
			modulePermission("scansScheduler", LevelExecute, nil),
			modulePermission("manualTesting", LevelWrite, nil),
			modulePermission("pdfRemediation", LevelWrite, nil),
			modulePermission("guidelines", LevelRead, nil),
		},
	},
	RoleOrganizationAdmin: {
		Name:        "Organization Administrator",
		RoleType:    RoleOrganizationAdmin,
		Description: "Full access within their organization, including user and group management",
		Permissions: []ModulePermission{
			modulePermission("dashboard", LevelRead, nil),
			modulePermission("dataQuery", LevelRead, nil),
			modulePermission("uptimeMonitoring", LevelExecute, nil),
			modulePermission("webpageScan", LevelExecute, nil),
			modulePermission("pdfScan", LevelExecute, nil),
			modulePermission("sitemap", LevelExecute, nil),
			modulePermission("scanMonitor", LevelRead, nil),
			modulePermission("scansScheduler", LevelExecute, nil),
			modulePermission("intake", LevelWrite, nil),
			modulePermission("manualTesting", LevelWrite, nil),
			modulePermission("pdfRemediation", LevelWrite, nil),
			modulePermission("settings", LevelWrite, nil),
			modulePermission(ModuleUsersRoles, LevelExecute, map[string]AccessLevel{
				"view_users":      LevelRead,
				"view_audit_logs": LevelRead,
			}),
			modulePermission("guidelines", LevelRead, nil),
		},
	},
	RoleGlobalAdmin: {
		Name:        "Global Administrator",
		RoleType:    RoleGlobalAdmin,
		Description: "Full system access including user management and global settings",
		Permissions: allModulesAt(LevelExecute),
	},
}

func allModulesAt(level AccessLevel) []ModulePermission {
	keys := make([]string, 0, len(ModuleCatalog))
	for moduleKey := range ModuleCatalog {
		keys = append(keys, moduleKey)
	}
	sort.Strings(keys)
	perms := make([]ModulePermission, 0, len(keys))
	for _, moduleKey := range keys {
		perms = append(perms, modulePermission(moduleKey, level, nil))
	}
	return perms
}

// NewPredefinedGroup instantiates a predefined role template as a concrete
// group bound to an organization and, optionally, one of its operating units.
func NewPredefinedGroup(role RoleType, organizationID, operatingUnitID, createdBy string) (Group, error) {
	template, ok := PredefinedRoles[role]
	if !ok {
		return Group{}, fmt.Errorf("%w: unknown role type %q", ErrInvalidInput, role)
	}
	scope := ScopeOrganization
	if operatingUnitID != "" {
		scope = ScopeOperatingUnit
	}
	group := Group{
		Name:            template.Name,
		Type:            GroupPredefined,
		RoleType:        template.RoleType,
		OrganizationID:  organizationID,
		OperatingUnitID: operatingUnitID,
		Scope:           scope,
		Permissions:     template.Permissions,
		Description:     template.Description,
		IsSystemGroup:   true,
		CreatedBy:       createdBy,
	}
	if err := group.Validate(); err != nil {
		return Group{}, err
	}
	return group, nil
}
