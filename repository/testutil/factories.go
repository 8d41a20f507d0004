package testutil

import (
	"time"

	"raffle/models"
)

// CreateTestGiveaway creates an active test giveaway with default values
func CreateTestGiveaway(guildID int64) *models.Giveaway {
	return &models.Giveaway{
		GuildID:             guildID,
		ChannelID:           200,
		CreatorDiscordID:    999,
		Prize:               "Test Prize",
		WinnerCount:         1,
		EndsAt:              time.Now().Add(time.Hour),
		ClaimTimeoutSeconds: models.DefaultClaimTimeoutSeconds,
		MaxRerollCount:      models.DefaultMaxRerollCount,
		Status:              models.GiveawayStatusActive,
	}
}

// CreateTestGiveawayWithRequirements creates a test giveaway with eligibility requirements
func CreateTestGiveawayWithRequirements(guildID int64, req models.Requirements) *models.Giveaway {
	giveaway := CreateTestGiveaway(guildID)
	giveaway.Requirements = req
	return giveaway
}

// CreateTestEntry creates a test entry
func CreateTestEntry(giveawayID, guildID, discordID int64) *models.Entry {
	return &models.Entry{
		GiveawayID: giveawayID,
		GuildID:    guildID,
		DiscordID:  discordID,
	}
}

// CreateTestJob creates a pending test job for the giveaway's end transition
func CreateTestJob(guildID, giveawayID int64) *models.ScheduledJob {
	return &models.ScheduledJob{
		JobKey:     models.JobKey(giveawayID, models.TransitionEnd, 0),
		GuildID:    guildID,
		GiveawayID: giveawayID,
		Transition: models.TransitionEnd,
		RunAt:      time.Now().Add(-time.Minute),
		Status:     models.JobStatusPending,
	}
}

// CreateTestMember creates an eligible test member
func CreateTestMember(discordID int64) *models.Member {
	return &models.Member{
		DiscordID:        discordID,
		Level:            10,
		AccountCreatedAt: time.Now().Add(-365 * 24 * time.Hour),
		JoinedAt:         time.Now().Add(-30 * 24 * time.Hour),
	}
}

// CreateTestMemberWithRoles creates a test member holding the given roles
func CreateTestMemberWithRoles(discordID int64, roleIDs ...int64) *models.Member {
	member := CreateTestMember(discordID)
	member.RoleIDs = roleIDs
	return member
}
