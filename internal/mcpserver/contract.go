package mcpserver

// UsageURI is the resource URI of UsageContract.
const UsageURI = "crm://usage"

// UsageContract describes the record formats that LLM consumers should
// follow when creating or updating CRM data.
const UsageContract = `# CRM Usage Contract

## Leads

| Field    | Rules                                                     |
|----------|-----------------------------------------------------------|
| id       | Assigned by the server. Never send one when creating.     |
| name     | REQUIRED, non-empty.                                      |
| email    | REQUIRED, a valid address. Duplicates are allowed.        |
| company  | Optional free text.                                       |
| phone    | Optional free text.                                       |
| status   | One of ` + "`New`, `Contacted`, `Qualified`, `Closed`" + `. Defaults to ` + "`New`" + `. |

Notes are free-text strings appended with ` + "`add_note`" + `; they are never edited.

## Meetings

A meeting belongs to exactly one lead and is scheduled with ` + "`add_meeting`" + `.

- ` + "`date`" + ` is ` + "`YYYY-MM-DD`" + `.
- ` + "`time`" + ` is 24-hour ` + "`HH:MM`" + `.
- ` + "`description`" + ` is required.
- Scheduling against an unknown lead fails and changes nothing.

## Messages

Messages are outgoing emails and are not linked to leads.

- ` + "`email`" + `, ` + "`subject`" + ` and ` + "`content`" + ` are required.
- The server stamps ` + "`timestamp`" + ` in UTC.

## UI components

Component tools (` + "`lead-list`, `add-lead-form`" + `, ...) take ONE complete object under
the property named in their schema, e.g. ` + "`{\"filters\": {\"status\": \"New\"}}`" + `.
Do not flatten its fields to the top level. ` + "`add-meeting-form`" + ` and
` + "`add-message-form`" + ` are the exception: their fields sit at the top level.

Form components keep a draft. Calling a form tool again merges the new values
into the draft; fields the user already edited are never cleared by an empty
value. Call ` + "`submit_form`" + ` to save the draft.
`
