package constant

// Banner is the application's ASCII banner shown in the root command help.
const Banner = `
 _   _ _       _     _                          _
| \ | (_) __ _| |__ | |_ ___ _ __ __ ___      _| | ___ _ __
|  \| | |/ _' | '_ \| __/ __| '__/ _' \ \ /\ / / |/ _ \ '__|
| |\  | | (_| | | | | || (__| | | (_| |\ V  V /| |  __/ |
|_| \_|_|\__, |_| |_|\__\___|_|  \__,_| \_/\_/ |_|\___|_|
         |___/`
