package directory

// Named presets supply default schema mappings and performance limits for
// known directory environments. A preset is merged under the user payload
// with deep merge semantics: the user value wins for every field present in
// the user payload, absent fields fall back to the preset, and nested
// objects are merged key by key rather than replaced wholesale.

// redHatPreset matches the Red Hat corporate directory data model.
var redHatPreset = map[string]any{
	"schema": map[string]any{
		"person_object_class": "rhatPerson",
		"group_object_class":  "rhatRoverGroup",
		"person_search_base":  "ou=users,dc=redhat,dc=com",
		"group_search_base":   "ou=adhoc,ou=managedGroups,dc=redhat,dc=com",
		"search_fields": map[string]any{
			"person": []any{"uid", "cn", "mail", "displayName", "givenName", "sn"},
			"group":  []any{"cn", "description"},
		},
		"corporate_attributes": []any{
			"uid", "cn", "mail", "givenName", "sn", "displayName",
			"telephoneNumber", "manager", "title", "department",
		},
		"extended_attributes": []any{
			"rhatJobTitle", "rhatCostCenter", "rhatCostCenterDesc", "rhatLocation",
			"rhatBio", "rhatGeo", "rhatOrganization", "rhatJobRole", "rhatTeamLead",
			"rhatOriginalHireDate", "rhatHireDate", "rhatWorkerId",
			"rhatBuildingCode", "rhatOfficeLocation",
		},
		"multi_valued_attributes": []any{
			"objectClass", "memberOf", "member", "uniqueMember", "memberUid", "ou",
		},
		"attribute_aliases": map[string]any{
			"rhatLocation":   "location",
			"rhatJobTitle":   "jobTitle",
			"rhatTeamLead":   "teamLead",
			"rhatCostCenter": "costCenter",
		},
	},
	"performance": map[string]any{
		"page_size":   float64(500),
		"max_results": float64(2000),
	},
	"export": map[string]any{
		"formats":              []any{"json", "csv"},
		"sensitive_attributes": []any{"userPassword", "sambaNTPassword", "rhatWorkerId"},
	},
}

// openLDAPPreset matches a generic inetOrgPerson/groupOfNames deployment.
var openLDAPPreset = map[string]any{
	"schema": map[string]any{
		"person_object_class": "inetOrgPerson",
		"group_object_class":  "groupOfNames",
		"search_fields": map[string]any{
			"person": []any{"uid", "cn", "mail", "givenName", "sn"},
			"group":  []any{"cn", "description"},
		},
		"corporate_attributes": []any{
			"uid", "cn", "mail", "givenName", "sn", "displayName",
			"telephoneNumber", "manager", "title", "department",
			"employeeNumber", "employeeType", "l", "st", "co",
			"physicalDeliveryOfficeName",
		},
		"extended_attributes": []any{},
		"multi_valued_attributes": []any{
			"objectClass", "memberOf", "member", "uniqueMember", "memberUid", "ou",
		},
	},
	"export": map[string]any{
		"formats":              []any{"json", "csv"},
		"sensitive_attributes": []any{"userPassword", "sambaNTPassword"},
	},
}

// Preset returns the raw payload for a named preset. Preset names are
// matched case-insensitively.
func Preset(name string) (map[string]any, bool) {
	switch normalizePresetName(name) {
	case "redhat":
		return deepCopyMap(redHatPreset), true
	case "openldap":
		return deepCopyMap(openLDAPPreset), true
	default:
		return nil, false
	}
}

// PresetNames lists the available preset names.
func PresetNames() []string {
	return []string{"redhat", "openldap"}
}

func normalizePresetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == '-' || r == '_' || r == ' ':
			// Dropped so "Red Hat" and "red-hat" both resolve.
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// deepMerge overlays the override payload onto the base payload. For each
// key present in the override the override value wins; nested maps are
// merged recursively; lists and scalars are replaced wholesale. Neither
// input is mutated. Merging the same override twice yields the same result
// as merging it once.
func deepMerge(base, override map[string]any) map[string]any {
	merged := deepCopyMap(base)
	for key, overrideVal := range override {
		baseVal, exists := merged[key]
		if exists {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overrideMap, overrideIsMap := overrideVal.(map[string]any)
			if baseIsMap && overrideIsMap {
				merged[key] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		merged[key] = deepCopyValue(overrideVal)
	}
	return merged
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return deepCopyMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
