package state

var (
	DBG_log_bgp          = false // log every announcement processed by a routing process
	DBG_log_export       = false // log every outbound announcement
	DBG_log_phases       = false // log each propagation phase as it completes
	DBG_log_rib_changes  = false // log local rib replacements
	DBG_log_repo_updates = false // log dataset index and download activity
	DBG_trace            = false // write a runtime trace to trace.out
	DBG_debug            = false // serve pprof on DebugAddr
)
