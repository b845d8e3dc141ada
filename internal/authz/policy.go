package authz

// Requirement is what an operation demands of its caller.
type Requirement struct {
	// Roles lists accepted role names; empty accepts any role.
	Roles []string
	// Permission optionally names a "resource:action" the caller's role
	// must grant.
	Permission string
}

// Policy maps operation names to their requirements. Operations missing
// from the policy have no requirement.
type Policy map[string]Requirement

// Requirement returns the requirement for op.
func (p Policy) Requirement(op string) Requirement {
	return p[op]
}

// Operation names used by the HTTP routes.
const (
	OpConversationsList       = "conversations.list"
	OpConversationsGet        = "conversations.get"
	OpConversationsCreate     = "conversations.create"
	OpConversationsAssign     = "conversations.assign"
	OpConversationsTransition = "conversations.transition"
	OpConversationsDelete     = "conversations.delete"

	OpMessagesList = "messages.list"
	OpMessagesSend = "messages.send"
	OpMessagesRead = "messages.read"

	OpContactsList   = "contacts.list"
	OpContactsGet    = "contacts.get"
	OpContactsCreate = "contacts.create"
	OpContactsUpdate = "contacts.update"
	OpContactsDelete = "contacts.delete"

	OpWhatsAppSend   = "whatsapp.send"
	OpWhatsAppStatus = "whatsapp.status"

	OpRolesList   = "roles.list"
	OpRolesGet    = "roles.get"
	OpRolesCreate = "roles.create"
	OpRolesUpdate = "roles.update"
	OpRolesDelete = "roles.delete"
	OpRolesSeed   = "roles.seed"

	OpUsersList   = "users.list"
	OpUsersCreate = "users.create"
	OpUsersUpdate = "users.update"
	OpUsersDelete = "users.delete"
)

// DefaultPolicy is the static operation → requirement table of the API.
func DefaultPolicy() Policy {
	adminOnly := Requirement{Roles: []string{RoleAdmin}}
	managers := Requirement{Roles: []string{RoleAdmin, RoleSupervisor}}
	canSend := Requirement{Permission: "whatsapp:send"}

	return Policy{
		OpConversationsAssign: managers,
		OpConversationsDelete: managers,

		OpMessagesSend: canSend,

		OpContactsDelete: managers,

		OpWhatsAppSend: canSend,

		OpRolesCreate: adminOnly,
		OpRolesUpdate: adminOnly,
		OpRolesDelete: adminOnly,
		OpRolesSeed:   adminOnly,

		OpUsersCreate: adminOnly,
		OpUsersUpdate: managers,
		OpUsersDelete: adminOnly,
	}
}
