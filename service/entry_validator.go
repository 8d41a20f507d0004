package service

import (
	"time"

	"raffle/models"
)

// ValidateEntry evaluates the eligibility rules for an entry request, in
// order, short-circuiting on the first failure. A nil result means accepted.
// It is a pure function over its inputs; the caller persists the entry only
// on acceptance, so a rejection never leaves partial state behind.
func ValidateEntry(giveaway *models.Giveaway, member *models.Member, alreadyEntered bool, now time.Time) *RejectionError {
	if !giveaway.IsActive() {
		return Reject(ReasonGiveawayNotActive)
	}
	if giveaway.HasExpired(now) {
		return Reject(ReasonGiveawayExpired)
	}
	if alreadyEntered {
		return Reject(ReasonDuplicateEntry)
	}
	return validateEligibility(giveaway, member, now)
}

// ValidateCandidate re-runs the eligibility rules against a picked winner's
// current state. Time has passed since entry: the candidate may have left the
// guild, lost a role, or otherwise become ineligible. The entry-window and
// duplicate checks do not apply here.
func ValidateCandidate(giveaway *models.Giveaway, member *models.Member, now time.Time) *RejectionError {
	return validateEligibility(giveaway, member, now)
}

func validateEligibility(giveaway *models.Giveaway, member *models.Member, now time.Time) *RejectionError {
	if member == nil {
		return Reject(ReasonNotInGuild)
	}
	if giveaway.Requirements.IsBlacklisted(member.DiscordID) {
		return Reject(ReasonBlacklisted)
	}
	if !member.HasAllRoles(giveaway.Requirements.RequiredRoleIDs) {
		return Reject(ReasonMissingRole)
	}
	if member.Level < giveaway.Requirements.MinLevel {
		return Reject(ReasonLevelTooLow)
	}
	if member.AccountAgeDays(now) < giveaway.Requirements.MinAccountAgeDays {
		return Reject(ReasonAccountTooNew)
	}
	return nil
}
