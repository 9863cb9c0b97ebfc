// Package preflight provides readiness checks for the binaries, devices,
// paths and endpoint rollcall depends on.
//
// These checks run in two contexts:
//   - The CLI "rollcall preflight" command runs RunAll and prints every result.
//   - The CLI "rollcall status" command uses individual checks (CheckSystemDeps,
//     ProbeCameras) to fill in details when the daemon is offline.
package preflight
