// Package security defines the sandbox isolation settings shared by the
// engine and the sandbox-init helper.
package security

// Profile describes namespace and seccomp settings for one run.
type Profile struct {
	// DisableNetwork places the process in an empty network namespace.
	DisableNetwork bool
	// EnableSeccomp loads the syscall deny-list before exec.
	EnableSeccomp bool
}

// DefaultProfile is the judged-process profile: no network, deny-list on.
func DefaultProfile() Profile {
	return Profile{DisableNetwork: true, EnableSeccomp: true}
}

// DeniedSyscalls is the deny-list applied to judged processes. Everything
// else is allowed; these return EPERM. Namespace creation is additionally
// blocked at clone time by the denied unshare/setns entries.
var DeniedSyscalls = []string{
	"mount",
	"umount2",
	"ptrace",
	"reboot",
	"init_module",
	"finit_module",
	"delete_module",
	"kexec_load",
	"kexec_file_load",
	"keyctl",
	"add_key",
	"request_key",
	"unshare",
	"setns",
	"pivot_root",
	"chroot",
	"swapon",
	"swapoff",
}
