package service

import "fmt"

func invitationEmailTemplate(contactName, inviterName, inviteURL, appName string) (string, string) {
	subject := fmt.Sprintf("%s invited you to share goals on %s", inviterName, appName)
	body := fmt.Sprintf(`Hi %s,

%s would like to share goals with you on %s. Open this link to accept:
%s

Once accepted, goals they share with you show up in your shared goals.

If you don't know %s, you can safely ignore this email.

Best,
The %s Team`, contactName, inviterName, appName, inviteURL, inviterName, appName)

	return subject, body
}

func backupReadyEmailTemplate(downloadURL, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s backup is ready", appName)
	body := fmt.Sprintf(`A snapshot of your goals has been saved.

Download it here:
%s

The link expires in one hour.

Best,
The %s Team`, downloadURL, appName)

	return subject, body
}
