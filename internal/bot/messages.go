package bot

import "fmt"

// User-facing wording lives here so handlers stay readable.

const (
	msgOffsetFirst = "First tell me your offset from base time in whole hours (for example -1 or +2)."

	msgOffsetFormatError = "I didn't get that, send a whole number of hours (for example -1 or +2)."

	msgAskText = "What should I remind you about?"

	msgEmptyReminderText = "The reminder text can't be empty. What should I remind you about?"

	msgAskTime = "When should I remind you? Format: HH:MM"

	msgTimeFormatError = "That doesn't look like a time, send HH:MM (for example 22:15)."

	msgNoReminders = "You don't have any reminders."

	msgNothingToDelete = "You have no reminders to delete."

	msgPickDelete = "Pick a reminder to delete:"

	msgAllDeleted = "All reminders deleted ✅"
)

func greeting(name string) string {
	if name == "" {
		return "Hi 👋\n" + msgOffsetFirst
	}
	return fmt.Sprintf("Hi, %s 👋\n%s", name, msgOffsetFirst)
}

func msgOffsetSaved(offset int) string {
	return fmt.Sprintf("Offset from base time (%+d h) saved ✅", offset)
}

func msgMainMenu(pending int) string {
	return fmt.Sprintf("⏰ Scheduled reminders: %d", pending)
}

func msgReminderSet(text, localTime string) string {
	return fmt.Sprintf("Reminder «%s» set for %s ⏳", text, localTime)
}

func msgReminderFired(text string) string {
	return fmt.Sprintf("⚠️ Don't forget: %s", text)
}

func msgReminderDeleted(text string) string {
	return fmt.Sprintf("Reminder «%s» deleted ✅", text)
}

func msgReminderNotFound(id string) string {
	return fmt.Sprintf("Couldn't find that reminder (id=%s), it may have fired or been deleted already.", id)
}
