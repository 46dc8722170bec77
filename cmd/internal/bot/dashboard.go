package bot

import (
	"context"
	"fmt"

	"pinbot/cmd/internal/pin"
)

func introEmbed() Embed {
	return Embed{
		Title:       bold("Introduction"),
		Description: "Please read this short introduction to get started with your product.",
		Fields: []Field{
			{Name: bold("How do I get started?"), Value: "Below you will see an " + code("Acknowledge") + " button. After reading this, you'll see a few steps to get the process going."},
			{Name: bold("What scripts do I have access to?"), Value: "All of our scripts are accessible through our Gamepack. Now that you've purchased your subscription, you'll have access for the duration you selected."},
			{Name: bold("Why should I pay when people will just leak it?"), Value: bold("People have tried and failed.") + " Our script is secure and constantly updated to ensure it remains leak-proof."},
			{Name: bold("Final Thoughts"), Value: "You'll have access to a lot of feedback, settings, and help through our community of players."},
		},
		Footer: "Hit the button below to move to the next section.",
	}
}

func filesEmbed() Embed {
	return Embed{
		Title:       bold("Files & Activation"),
		Description: "Download the files below, then activate your pin.",
		Color:       ColorInfo,
		Fields: []Field{
			{Name: bold("Step 1"), Value: "Download Zen++ and the C++ Runtimes."},
			{Name: bold("Step 2"), Value: "Press " + code("Add Pin") + ", then run " + code("/addpin user") + " with your pin."},
		},
	}
}

func (b *Bot) dashboard(_ context.Context, _ Request) (Response, error) {
	return Response{
		Embeds:     []Embed{introEmbed()},
		Components: []Row{{{CustomID: customAcknowledge, Label: "Acknowledge", Style: StylePrimary}}},
	}, nil
}

func (b *Bot) onAcknowledge(_ context.Context, _ Request) (Response, error) {
	return Response{
		Embeds: []Embed{filesEmbed()},
		Components: []Row{{
			{CustomID: customDownloadZen, Label: "Download Zen++", Style: StyleSecondary},
			{CustomID: customDownloadCpp, Label: "Download C++ Runtimes", Style: StyleSecondary},
			{CustomID: customAddPin, Label: "Add Pin", Style: StyleSuccess},
		}},
		Ephemeral: true,
	}, nil
}

func (b *Bot) onDownload(_ context.Context, req Request) (Response, error) {
	if req.CustomID == customDownloadZen {
		return Response{Content: fmt.Sprintf("Please download Zen++ here: [Zen++ Download Link](%s)", b.cfg.ZenDownloadURL), Ephemeral: true}, nil
	}
	return Response{Content: fmt.Sprintf("Please download C++ Runtimes here: [C++ Runtimes Download Link](%s)", b.cfg.CppDownloadURL), Ephemeral: true}, nil
}

// onActivate swaps the Activation role for the Activated role.
func (b *Bot) onActivate(ctx context.Context, req Request) (Response, error) {
	if b.cfg.ActivationRoleID == "" && b.cfg.ActivatedRoleID == "" {
		return Response{}, pin.OpError{Op: "bot.activate", Kind: pin.ErrValidation, Msg: "Activation roles are not configured."}
	}
	if id := b.cfg.ActivationRoleID; id != "" {
		if err := b.dir.RemoveRole(ctx, req.GuildID, req.User.ID, id); err != nil {
			return Response{}, fmt.Errorf("remove activation role: %w", err)
		}
	}
	if id := b.cfg.ActivatedRoleID; id != "" {
		if err := b.dir.AddRole(ctx, req.GuildID, req.User.ID, id); err != nil {
			return Response{}, fmt.Errorf("add activated role: %w", err)
		}
	}

	b.activity(ctx, req, Embed{Title: bold("Member Activated"), Description: fmt.Sprintf("**User:** %s", req.User.Tag), Color: ColorSuccess})
	return Response{
		Content:   "Use `/addpin user` to add your pin. Once completed, you will be activated.",
		Ephemeral: true,
		FollowUps: []Response{{Content: "Congratulations! You have been activated.", Ephemeral: true}},
	}, nil
}
