package job

// State is the outcome bucket a job lands in for reporting.
type State int

const (
	Failure  State = 0
	Success  State = 1
	Exceeded State = 2
)

func (s State) Code() int {
	return int(s)
}

// Label is the lowercase name used in report file names and log headers.
func (s State) Label() string {
	switch s {
	case Success:
		return "success"
	case Exceeded:
		return "exceeded-max-failure"
	default:
		return "failure"
	}
}

func (s State) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Exceeded:
		return "EXCEEDED"
	default:
		return "FAILURE"
	}
}

// ReturnCode is the result of one job attempt. Codes 0 through 5 come from
// the test runner itself; the rest are assigned by the scheduler.
type ReturnCode int

const (
	RCUnset         ReturnCode = -1
	RCSuccess       ReturnCode = 0
	RCTestsFailed   ReturnCode = 1
	RCInterrupted   ReturnCode = 2
	RCInternalError ReturnCode = 3
	RCUsageError    ReturnCode = 4
	RCNoTests       ReturnCode = 5
	RCNoNodesOnline ReturnCode = 6
	RCRebalanced    ReturnCode = 7
	RCExceeded      ReturnCode = 8
	RCTimeout       ReturnCode = 9
	RCNodeBusy      ReturnCode = 10
)

func (rc ReturnCode) Code() int {
	return int(rc)
}

// Label describes the return code in a sentence suitable for job messages.
func (rc ReturnCode) Label() string {
	switch rc {
	case RCSuccess:
		return "Job successfully executed."
	case RCTestsFailed:
		return "Test case failed with an error."
	case RCInterrupted:
		return "Test case execution was interrupted by the user."
	case RCInternalError:
		return "Internal error occurred while executing test."
	case RCUsageError:
		return "Pytest command line usage error."
	case RCNoTests:
		return "No tests were collected."
	case RCNoNodesOnline:
		return "There are no managed nodes online to run jobs."
	case RCRebalanced:
		return "Job was reassigned to another managed node."
	case RCExceeded:
		return "Job has exceeded permitted job failures."
	case RCTimeout:
		return "Job has exceeded timeout."
	case RCNodeBusy:
		return "Job was passed over because its managed node is busy."
	case RCUnset:
		return "Job has not run."
	default:
		return "Test case failed with an unexpected return code."
	}
}
