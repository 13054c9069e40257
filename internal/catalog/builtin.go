package catalog

// Domains a target query may filter on. Mirrors the controllable device
// categories exposed by the entity registry.
var knownDomains = []string{"light", "switch", "fan", "cover", "lock", "climate", "media_player", "vacuum"}

func floatPtr(f float64) *float64 { return &f }

// targetParameters are shared by every tool that resolves entities. At least
// one of name/area/floor must be supplied; the dispatcher enforces that when
// it builds the resolution query.
func targetParameters() map[string]Parameter {
	return map[string]Parameter{
		"name": {
			Type:        "string",
			Description: "Device name or alias, exactly as the user says it (e.g. 'kitchen light', 'table lamp')",
		},
		"area": {
			Type:        "string",
			Description: "Area name to target every matching device in that area (e.g. 'kitchen', 'living room')",
		},
		"floor": {
			Type:        "string",
			Description: "Floor name to target every matching device on that floor (e.g. 'upstairs', 'ground floor')",
		},
		"domain": {
			Type:        "string",
			Description: "Device category to narrow the target set (e.g. 'light' when the user says 'all lights')",
			Enum:        knownDomains,
		},
	}
}

func withTarget(extra map[string]Parameter) map[string]Parameter {
	params := targetParameters()
	for name, p := range extra {
		params[name] = p
	}
	return params
}

func builtinDefinitions() []Definition {
	return []Definition{
		{
			Name:           "turn_on",
			Description:    "Turn on a device, or every matching device in an area or on a floor.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
		},
		{
			Name:           "turn_off",
			Description:    "Turn off a device, or every matching device in an area or on a floor.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
		},
		{
			Name:           "toggle",
			Description:    "Toggle a device between on and off.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
		},
		{
			Name:        "light_set",
			Description: "Change light brightness, color or white temperature. Use the 'color' argument for any color the user describes.",
			Parameters: withTarget(map[string]Parameter{
				"brightness": {
					Type:        "integer",
					Description: "Brightness percentage, 0-100",
					Minimum:     floatPtr(0),
					Maximum:     floatPtr(100),
				},
				"color": {
					Type:        "string",
					Description: "Color description ('red', 'warm white', 'the color of the sky')",
				},
			}),
			RequiresTarget: true,
			MultiTarget:    true,
			ColorParam:     "color",
			Domains:        []string{"light"},
		},
		{
			Name:           "get_state",
			Description:    "Report the current state of one or more devices.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
		},
		{
			Name:        "list_entities",
			Description: "List controllable devices, optionally filtered by domain.",
			Parameters: map[string]Parameter{
				"domain": {
					Type:        "string",
					Description: "Device category filter",
					Enum:        knownDomains,
				},
			},
		},
		{
			Name:        "list_areas",
			Description: "List the areas of the home.",
			Parameters:  map[string]Parameter{},
		},
		{
			Name:        "list_floors",
			Description: "List the floors of the home.",
			Parameters:  map[string]Parameter{},
		},
		{
			Name:        "climate_set_temperature",
			Description: "Set the target temperature of a thermostat.",
			Parameters: withTarget(map[string]Parameter{
				"temperature": {
					Type:        "number",
					Description: "Target temperature in the home's configured unit",
					Required:    true,
					Minimum:     floatPtr(5),
					Maximum:     floatPtr(35),
				},
			}),
			RequiresTarget: true,
			Domains:        []string{"climate"},
		},
		{
			Name:           "cover_open",
			Description:    "Open a cover such as blinds, a garage door or curtains.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"cover"},
		},
		{
			Name:           "cover_close",
			Description:    "Close a cover such as blinds, a garage door or curtains.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"cover"},
		},
		{
			Name:        "cover_set_position",
			Description: "Move a cover to a specific position.",
			Parameters: withTarget(map[string]Parameter{
				"position": {
					Type:        "integer",
					Description: "Position percentage, 0 closed to 100 open",
					Required:    true,
					Minimum:     floatPtr(0),
					Maximum:     floatPtr(100),
				},
			}),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"cover"},
		},
		{
			Name:           "lock_lock",
			Description:    "Lock a lock.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			Domains:        []string{"lock"},
		},
		{
			Name:           "lock_unlock",
			Description:    "Unlock a lock. Only one lock may be targeted at a time.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			Domains:        []string{"lock"},
		},
		{
			Name:           "media_pause",
			Description:    "Pause media playback.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"media_player"},
		},
		{
			Name:           "media_unpause",
			Description:    "Resume media playback.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"media_player"},
		},
		{
			Name:           "media_next",
			Description:    "Skip to the next media item.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			Domains:        []string{"media_player"},
		},
		{
			Name:        "media_set_volume",
			Description: "Set media playback volume.",
			Parameters: withTarget(map[string]Parameter{
				"volume": {
					Type:        "integer",
					Description: "Volume percentage, 0-100",
					Required:    true,
					Minimum:     floatPtr(0),
					Maximum:     floatPtr(100),
				},
			}),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"media_player"},
		},
		{
			Name:        "fan_set_speed",
			Description: "Set fan speed.",
			Parameters: withTarget(map[string]Parameter{
				"speed": {
					Type:        "string",
					Description: "Fan speed",
					Required:    true,
					Enum:        []string{"off", "low", "medium", "high"},
				},
			}),
			RequiresTarget: true,
			MultiTarget:    true,
			Domains:        []string{"fan"},
		},
		{
			Name:           "vacuum_start",
			Description:    "Start a vacuum cleaner.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			Domains:        []string{"vacuum"},
		},
		{
			Name:           "vacuum_return_to_base",
			Description:    "Send a vacuum cleaner back to its dock.",
			Parameters:     targetParameters(),
			RequiresTarget: true,
			Domains:        []string{"vacuum"},
		},
		{
			Name:        "get_current_time",
			Description: "Get the current date and time.",
			Parameters:  map[string]Parameter{},
		},
	}
}
