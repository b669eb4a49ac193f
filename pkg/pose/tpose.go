package pose

// TPose is the pose pushed through the pipeline at startup so the skeleton
// has a valid configuration before live data arrives.
const TPose = "[[[1.03118134e+02 6.99873962e+01 2.88619578e-01]\n" +
	"  [1.03757507e+02 8.75215988e+01 7.35780954e-01]\n" +
	"  [8.55773468e+01 9.07415543e+01 7.16933608e-01]\n" +
	"  [6.34864426e+01 6.54687424e+01 7.07642257e-01]\n" +
	"  [8.04082489e+01 4.20597572e+01 7.24343121e-01]\n" +
	"  [1.21941612e+02 8.62053604e+01 7.26475894e-01]\n" +
	"  [1.27820770e+02 6.41296692e+01 7.71827757e-01]\n" +
	"  [1.08954285e+02 4.01150093e+01 7.46629119e-01]\n" +
	"  [1.03761574e+02 1.38190353e+02 6.38162971e-01]\n" +
	"  [9.07512207e+01 1.38192856e+02 6.32528305e-01]\n" +
	"  [6.02510033e+01 1.58949036e+02 8.16145182e-01]\n" +
	"  [6.47959747e+01 2.27809174e+02 5.01409650e-01]\n" +
	"  [1.17400948e+02 1.38182007e+02 6.20658875e-01]\n" +
	"  [1.37524857e+02 1.60911041e+02 7.70069838e-01]\n" +
	"  [1.23897186e+02 2.15476379e+02 6.96041703e-01]\n" +
	"  [9.92138443e+01 6.54317474e+01 3.01264435e-01]\n" +
	"  [1.06361214e+02 6.54366455e+01 2.87769794e-01]\n" +
	"  [9.07777481e+01 6.86885452e+01 3.72277319e-01]\n" +
	"  [1.11543053e+02 6.93356628e+01 1.21816687e-01]\n" +
	"  [1.42713959e+02 2.30408524e+02 6.66928828e-01]\n" +
	"  [1.43365540e+02 2.27155731e+02 7.03941524e-01]\n" +
	"  [1.18062080e+02 2.20677872e+02 5.86193681e-01]\n" +
	"  [7.12915802e+01 2.32383850e+02 2.03017890e-01]\n" +
	"  [6.41454773e+01 2.37560364e+02 2.09143758e-01]\n" +
	"  [6.60891037e+01 2.32355682e+02 2.48061493e-01]]]"
