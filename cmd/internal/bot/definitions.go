package bot

import (
	"strings"

	"pinbot/cmd/internal/tier"
)

// Command and subcommand names.
const (
	CmdAddPin            = "addpin"
	CmdUpdateInfo        = "updateinfo"
	CmdUpdateExpiry      = "updateexpiry"
	CmdCheckSubscription = "checksubscription"
	CmdDeletePin         = "deletepin"
	CmdSearchPin         = "searchpin"
	CmdViewPins          = "viewpins"
	CmdAuditReport       = "auditreport"
	CmdServerConfig      = "serverconfig"
	CmdDashboard         = "dashboard"

	SubAdmin  = "admin"
	SubUser   = "user"
	SubSetup  = "setup"
	SubUpdate = "update"
)

// Component custom ids and prefixes.
const (
	customUpdateAll    = "update-all"
	customUpdatePrefix = "update-"
	customRolePage     = "rpage-"
	customSearchPage   = "spage-"
	customAcknowledge  = "acknowledge"
	customDownloadZen  = "download_zen"
	customDownloadCpp  = "download_cpp"
	customAddPin       = "add_pin"
)

// OptionKind is the value type of a command option.
type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionInteger
)

// OptionDef describes one command option.
type OptionDef struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
}

// SubcommandDef describes one subcommand.
type SubcommandDef struct {
	Name        string
	Description string
	Options     []OptionDef
}

// Definition describes a slash command for registration.
type Definition struct {
	Name        string
	Description string
	// AdminOnly hides the command from members without administrator permission.
	AdminOnly bool
	// Public replies are visible to the whole channel.
	Public      bool
	Options     []OptionDef
	Subcommands []SubcommandDef
}

func str(name, desc string, required bool) OptionDef {
	return OptionDef{Name: name, Description: desc, Kind: OptionString, Required: required}
}

// Definitions lists every command the bot registers.
func Definitions() []Definition {
	tierOpts := make([]OptionDef, 0, len(tier.All))
	for _, t := range tier.All {
		tierOpts = append(tierOpts, str(t.Key(), t.DisplayName()+" role name", false))
	}

	return []Definition{
		{
			Name:        CmdAddPin,
			Description: "Add a pin code",
			Subcommands: []SubcommandDef{
				{
					Name:        SubAdmin,
					Description: "Admin: Add a new pin with user and role details",
					Options: []OptionDef{
						str("pin", "The pin code", true),
						str("usertag", "The user tag", true),
						str("rolename", "The role name", true),
					},
				},
				{
					Name:        SubUser,
					Description: "User: Add a new pin",
					Options:     []OptionDef{str("pin", "The pin code", true)},
				},
			},
		},
		{
			Name:        CmdUpdateInfo,
			Description: "Check and update pin information in the database",
			AdminOnly:   true,
		},
		{
			Name:        CmdUpdateExpiry,
			Description: "Update the expiry date of a pin",
			AdminOnly:   true,
			Options: []OptionDef{
				str("date", "The new expiration date (YYYY-MM-DD)", true),
				str("pin", "The pin code", false),
				str("usertag", "The user tag associated with the pin", false),
			},
		},
		{
			Name:        CmdCheckSubscription,
			Description: "Check the subscription status of a user",
			AdminOnly:   true,
			Options:     []OptionDef{str("username", "The username to check", true)},
		},
		{
			Name:        CmdDeletePin,
			Description: "Delete pin codes",
			AdminOnly:   true,
			Options: []OptionDef{
				str("pin", "The pin code to delete", false),
				str("usertag", "The user tag whose pins to delete", false),
			},
		},
		{
			Name:        CmdSearchPin,
			Description: "Search for a pin by pin code, username, or role name",
			AdminOnly:   true,
			Options: []OptionDef{
				str("pin", "The pin code to search for", false),
				str("username", "The username whose pins to search for", false),
				str("rolename", "The role name to search for", false),
				{Name: "page", Description: "Result page", Kind: OptionInteger},
			},
		},
		{
			Name:        CmdViewPins,
			Description: "View your pins",
		},
		{
			Name:        CmdAuditReport,
			Description: "Report members without pins for each special role",
			AdminOnly:   true,
		},
		{
			Name:        CmdServerConfig,
			Description: "Configure the server settings",
			AdminOnly:   true,
			Subcommands: []SubcommandDef{
				{Name: SubSetup, Description: "Setup the server configuration"},
				{Name: SubUpdate, Description: "Update the server configuration", Options: tierOpts},
			},
		},
		{
			Name:        CmdDashboard,
			Description: "Displays the activation dashboard",
			AdminOnly:   true,
			Public:      true,
		},
	}
}

// Deferral says how an adapter should acknowledge a request before Handle runs.
type Deferral int

const (
	// DeferReply opens a new reply that Handle's response fills in.
	DeferReply Deferral = iota + 1
	// DeferEphemeralReply is DeferReply visible only to the invoker.
	DeferEphemeralReply
	// DeferUpdate edits the message that carried the clicked component.
	DeferUpdate
)

// DeferralFor picks the acknowledgement for req.
func DeferralFor(req Request) Deferral {
	if req.Kind == KindComponent {
		// Dashboard buttons answer privately and leave their message alone.
		switch req.CustomID {
		case customAcknowledge, customDownloadZen, customDownloadCpp, customAddPin:
			return DeferEphemeralReply
		}
		return DeferUpdate
	}
	for _, d := range Definitions() {
		if d.Name == req.Command && d.Public {
			return DeferReply
		}
	}
	return DeferEphemeralReply
}

func componentName(customID string) string {
	switch {
	case customID == customUpdateAll, strings.HasPrefix(customID, customUpdatePrefix):
		return "update"
	case strings.HasPrefix(customID, customRolePage):
		return "rpage"
	case strings.HasPrefix(customID, customSearchPage):
		return "spage"
	case customID == customAcknowledge, customID == customDownloadZen, customID == customDownloadCpp, customID == customAddPin:
		return customID
	}
	return "unknown"
}

func (b *Bot) routeComponent(customID string) (handlerFunc, bool, bool) {
	switch componentName(customID) {
	case "update":
		return b.onUpdateButton, true, true
	case "rpage":
		return b.onRolePage, true, true
	case "spage":
		return b.onSearchPage, true, true
	case customAcknowledge:
		return b.onAcknowledge, false, true
	case customDownloadZen, customDownloadCpp:
		return b.onDownload, false, true
	case customAddPin:
		return b.onActivate, false, true
	}
	return nil, false, false
}
